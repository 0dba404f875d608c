package constants

import (
	"fmt"
	"time"
)

// Redis keys
const (
	RedisKeyRecentOperations = "ops:recent"
	RedisKeySnapshotPrefix   = "snapshot:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelOperations = "ops:live"
)

// Limits
const (
	MaxRecentOperations = 100
	DefaultHistoryLimit = 10
	MaxTokenDecimals    = 9
)

// Token program account sizes (bytes)
const (
	MintAccountSize uint64 = 82
)

// Polling
const (
	BalancePollInterval = 10 * time.Second
	HistoryPollInterval = 30 * time.Second
	SnapshotTTL         = 2 * time.Minute
)

// Watch list defaults
const (
	DefaultTokenName     = "Unknown Token"
	DefaultTokenSymbol   = "TOKEN"
	DefaultTokenDecimals = 9
)

// Log fragments emitted by the token program, used by the history classifier.
const (
	LogInitializeMint = "Initialize mint"
	LogMintTo         = "Mint to"
	LogTransfer       = "Transfer"
	LogTransferLower  = "transfer"
)

// Explorer
const ExplorerBaseURL = "https://explorer.solana.com"

// ExplorerTxURL returns the explorer link for a transaction signature.
func ExplorerTxURL(signature, cluster string) string {
	return explorerURL("tx", signature, cluster)
}

// ExplorerAddressURL returns the explorer link for an account.
func ExplorerAddressURL(address, cluster string) string {
	return explorerURL("address", address, cluster)
}

func explorerURL(kind, id, cluster string) string {
	if cluster == "" || cluster == "mainnet-beta" {
		return fmt.Sprintf("%s/%s/%s", ExplorerBaseURL, kind, id)
	}
	return fmt.Sprintf("%s/%s/%s?cluster=%s", ExplorerBaseURL, kind, id, cluster)
}
