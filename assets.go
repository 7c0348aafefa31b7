package whiskypay

// AssetKind selects the transaction path used to pay with an asset.
type AssetKind int

const (
	// AssetNative pays with SOL via a system transfer.
	AssetNative AssetKind = iota

	// AssetStable pays with the settlement asset via an SPL transfer.
	AssetStable

	// AssetSwap pays with another SPL token, swapped into the settlement
	// asset as part of the same transaction.
	AssetSwap
)

// Asset is a static catalog entry describing a payable asset. Entries are
// read-only and process-wide.
type Asset struct {
	// Symbol is the asset's ticker, e.g. "SOL".
	Symbol string

	// DisplayName is the asset's human-readable name.
	DisplayName string

	// IconURL points at the asset's icon.
	IconURL string

	// Mint is the asset's on-chain mint address. For SOL this is the
	// wrapped-SOL mint, which price and swap APIs use as its identifier.
	Mint string

	// Decimals is the number of decimal places in the smallest unit.
	Decimals uint8

	// Kind selects the transaction path.
	Kind AssetKind
}

// Well-known mint addresses.
const (
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint       = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	JUPMint        = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	BONKMint       = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// SettlementAsset is the asset merchants are paid in.
var SettlementAsset = Asset{
	Symbol:      "USDC",
	DisplayName: "USD Coin",
	IconURL:     "https://static.whiskypay.fun/assets/usdc.svg",
	Mint:        USDCMint,
	Decimals:    6,
	Kind:        AssetStable,
}

// Assets is the static catalog of payable assets.
var Assets = []Asset{
	{
		Symbol:      "SOL",
		DisplayName: "Solana",
		IconURL:     "https://static.whiskypay.fun/assets/sol.svg",
		Mint:        WrappedSOLMint,
		Decimals:    9,
		Kind:        AssetNative,
	},
	SettlementAsset,
	{
		Symbol:      "USDT",
		DisplayName: "Tether USD",
		IconURL:     "https://static.whiskypay.fun/assets/usdt.svg",
		Mint:        USDTMint,
		Decimals:    6,
		Kind:        AssetSwap,
	},
	{
		Symbol:      "JUP",
		DisplayName: "Jupiter",
		IconURL:     "https://static.whiskypay.fun/assets/jup.svg",
		Mint:        JUPMint,
		Decimals:    6,
		Kind:        AssetSwap,
	},
	{
		Symbol:      "BONK",
		DisplayName: "Bonk",
		IconURL:     "https://static.whiskypay.fun/assets/bonk.svg",
		Mint:        BONKMint,
		Decimals:    5,
		Kind:        AssetSwap,
	},
}

// FindAsset looks up a catalog entry by symbol. The second return value
// reports whether the symbol is supported.
func FindAsset(symbol string) (Asset, bool) {
	for _, a := range Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}
