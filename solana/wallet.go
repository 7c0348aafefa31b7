package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
)

// KeypairWallet implements whiskypay.Wallet with a local ed25519 keypair.
// It signs serialized transactions and submits them through the RPC client.
type KeypairWallet struct {
	key    solana.PrivateKey
	client RPCClient
}

var _ whiskypay.Wallet = (*KeypairWallet)(nil)

// NewKeypairWallet creates a wallet from a base58-encoded private key.
func NewKeypairWallet(privateKeyBase58 string, client RPCClient) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeypairWallet{key: key, client: client}, nil
}

// NewKeypairWalletFromFile creates a wallet from a Solana keygen JSON file:
// a JSON array of 64 bytes (the ed25519 private key).
func NewKeypairWalletFromFile(path string, client RPCClient) (*KeypairWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keygen file: %w", err)
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("invalid keygen file format: %w", err)
	}
	if len(values) != 64 {
		return nil, fmt.Errorf("invalid key length %d, expected 64 bytes", len(values))
	}
	keyBytes := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid key byte %d at index %d", v, i)
		}
		keyBytes[i] = byte(v)
	}
	return &KeypairWallet{key: solana.PrivateKey(keyBytes), client: client}, nil
}

// Address returns the wallet's base58 public key.
func (w *KeypairWallet) Address() string {
	return w.key.PublicKey().String()
}

// SignAndSubmit signs the serialized transaction and submits it, returning
// the transaction signature.
func (w *KeypairWallet) SignAndSubmit(ctx context.Context, raw whiskypay.SignableTransaction) (string, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	pub := w.key.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := w.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return sig.String(), nil
}
