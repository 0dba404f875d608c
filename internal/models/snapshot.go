package models

import "time"

type SOLBalance struct {
	Owner     string    `json:"owner"`
	Lamports  uint64    `json:"lamports"`
	SOL       string    `json:"sol"` // 4 decimal places
	FetchedAt time.Time `json:"fetched_at"`
}

type TokenBalance struct {
	Owner        string    `json:"owner"`
	Mint         string    `json:"mint"`
	Name         string    `json:"name,omitempty"`
	Symbol       string    `json:"symbol,omitempty"`
	TokenAccount string    `json:"token_account"`
	Amount       string    `json:"amount"`    // raw base units
	UIAmount     string    `json:"ui_amount"` // exact decimal
	Decimals     uint8     `json:"decimals"`
	Exists       bool      `json:"exists"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// HistoryEntry is one row of the wallet's recent activity. Type is derived
// from log messages and is best effort only.
type HistoryEntry struct {
	Signature      string     `json:"signature"`
	ShortSignature string     `json:"short_signature"`
	Slot           int64      `json:"slot"`
	BlockTime      *time.Time `json:"block_time,omitempty"`
	Status         string     `json:"status"` // Success, Failed, Unknown
	Type           string     `json:"type"`   // Create Token, Mint Token, Transfer, Unknown
	ExplorerURL    string     `json:"explorer_url"`
}

// DashboardSnapshot is the latest view of a wallet published to live
// subscribers and cached in Redis.
type DashboardSnapshot struct {
	Owner     string            `json:"owner"`
	SOL       *SOLBalance       `json:"sol,omitempty"`
	Tokens    []TokenBalance    `json:"tokens"`
	History   []HistoryEntry    `json:"history"`
	Errors    map[string]string `json:"errors,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
