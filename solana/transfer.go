package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	whiskypay "github.com/weknowyourgame/whiskypay-solana-sdk"
)

// ComputeBudgetProgramID is the Solana Compute Budget program ID.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// DefaultComputeUnits is the compute unit limit attached to transfers.
const DefaultComputeUnits uint32 = 200_000

// DefaultComputeUnitPrice is the compute unit price in microlamports.
const DefaultComputeUnitPrice uint64 = 10_000

// BuildNativeTransfer builds an unsigned system transfer of lamports.
func (l *Ledger) BuildNativeTransfer(ctx context.Context, from, to string, lamports uint64) (whiskypay.SignableTransaction, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	transfer := system.NewTransferInstruction(lamports, fromKey, toKey).Build()
	return l.assemble(ctx, fromKey, transfer)
}

// BuildTokenTransfer builds an unsigned SPL TransferChecked of amount from
// the sender's associated token account to the recipient's, creating the
// recipient account idempotently when it does not exist yet.
func (l *Ledger) BuildTokenTransfer(ctx context.Context, from, to, mint string, amount uint64, decimals uint8) (whiskypay.SignableTransaction, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(fromKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(toKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("derive destination token account: %w", err)
	}

	createDest, err := buildCreateIdempotentATAInstruction(fromKey, toKey, mintKey)
	if err != nil {
		return nil, err
	}

	transfer := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(decimals).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(mintKey).
		SetOwnerAccount(fromKey).
		Build()

	return l.assemble(ctx, fromKey, createDest, transfer)
}

// assemble attaches compute budget instructions, fetches a recent blockhash
// and serializes the unsigned transaction.
func (l *Ledger) assemble(ctx context.Context, payer solana.PublicKey, instructions ...solana.Instruction) (whiskypay.SignableTransaction, error) {
	all := make([]solana.Instruction, 0, len(instructions)+2)
	all = append(all,
		buildSetComputeUnitLimitInstruction(DefaultComputeUnits),
		buildSetComputeUnitPriceInstruction(DefaultComputeUnitPrice),
	)
	all = append(all, instructions...)

	blockhash, err := l.Client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(all, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return whiskypay.SignableTransaction(raw), nil
}

// buildSetComputeUnitLimitInstruction encodes [2, units (u32 LE)].
// Instruction discriminator 2 = SetComputeUnitLimit.
func buildSetComputeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	data[1] = byte(units)
	data[2] = byte(units >> 8)
	data[3] = byte(units >> 16)
	data[4] = byte(units >> 24)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildSetComputeUnitPriceInstruction encodes [3, microlamports (u64 LE)].
// Instruction discriminator 3 = SetComputeUnitPrice.
func buildSetComputeUnitPriceInstruction(microlamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	for i := 0; i < 8; i++ {
		data[i+1] = byte(microlamports >> (8 * i))
	}

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildCreateIdempotentATAInstruction creates an idempotent Associated Token
// Account creation instruction. Unlike the standard Create instruction
// (index 0), CreateIdempotent (index 1) succeeds even if the account already
// exists, so it is safe to include unconditionally.
func buildCreateIdempotentATAInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive associated token account: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1}), nil
}
