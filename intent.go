package whiskypay

// TransactionIntent is a tagged variant describing the transaction to build
// for one payment attempt. Intents are ephemeral: constructed during the
// Building state and discarded after submission.
type TransactionIntent interface {
	// IntentAsset returns the asset the user pays with.
	IntentAsset() Asset

	isIntent()
}

// DirectTransferIntent is a native SOL transfer to the merchant.
type DirectTransferIntent struct {
	// Asset is the native asset catalog entry.
	Asset Asset

	// Lamports is the transfer amount in the native smallest unit.
	Lamports uint64
}

// StableTransferIntent is an SPL transfer of the settlement asset.
type StableTransferIntent struct {
	// Asset is the settlement asset catalog entry.
	Asset Asset

	// Amount is the transfer amount in the asset's smallest unit.
	Amount uint64
}

// SwapTransferIntent converts a user-held asset into the settlement asset
// and delivers it to the merchant in one transaction.
type SwapTransferIntent struct {
	// Source is the asset the user pays with.
	Source Asset

	// Target is the settlement asset.
	Target Asset

	// TargetAmount is the exact-out settlement amount in the target's
	// smallest unit.
	TargetAmount uint64
}

func (i DirectTransferIntent) IntentAsset() Asset { return i.Asset }
func (i StableTransferIntent) IntentAsset() Asset { return i.Asset }
func (i SwapTransferIntent) IntentAsset() Asset   { return i.Source }

func (DirectTransferIntent) isIntent() {}
func (StableTransferIntent) isIntent() {}
func (SwapTransferIntent) isIntent()   {}
