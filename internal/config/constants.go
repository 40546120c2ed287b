package config

import "time"

// Gas limits used as EstimateGas fallbacks when the node cannot simulate the tx.
// These are conservative upper bounds; actual gas used will be lower.
const (
	GasLimitETHTransfer  = uint64(21_000)  // plain value transfer
	GasLimitPurchase     = uint64(300_000) // purchase: token transfer + receipt mint
	GasLimitContractCall = uint64(200_000) // generic contract state-change call
)

// Timeouts.
const (
	RPCSelectTimeout   = 10 * time.Second // fallback RPC benchmark
	DefaultCallTimeout = 5 * time.Second  // single timeboxed read
	TxConfirmTimeout   = 3 * time.Minute  // standard transaction confirmation wait
)

// Receipt log scan tuning.
const (
	ScanInitialStep = uint64(2_000)
	ScanMinStep     = uint64(10)
	ScanMaxStep     = uint64(10_000)
	ScanMaxRetries  = 5
	RateLimitPause  = 750 * time.Millisecond
)

// DefaultWatchInterval matches the dashboard's auto-refresh period.
const DefaultWatchInterval = 25 * time.Second
