package models

import "time"

// OperationEvent is a flattened submission outcome as written to the journal
// (Redis recent list, pub/sub feed, ClickHouse token_operations table).
type OperationEvent struct {
	ID           string    `json:"id"`
	Signature    string    `json:"signature"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         string    `json:"kind"`   // create_mint, mint_to, transfer, create_account
	Status       string    `json:"status"` // confirmed, failed
	Mint         string    `json:"mint"`
	Owner        string    `json:"owner"`        // requesting wallet
	Counterparty string    `json:"counterparty"` // destination or recipient owner
	TokenAccount string    `json:"token_account"`
	Amount       string    `json:"amount"` // human-readable, exact decimal
	BaseUnits    uint64    `json:"base_units"`
	Decimals     uint8     `json:"decimals"`
	Reason       string    `json:"reason,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Cluster      string    `json:"cluster"`
}
