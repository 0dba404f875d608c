package server

import (
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Hint    string `json:"hint,omitempty"`    // What the user can do about it
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)

	// Operation is the failed outcome when a token operation was attempted
	Operation *tokenengine.Outcome `json:"operation,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK        bool   `json:"ok"`
	Connected bool   `json:"wallet_connected"`
	Cluster   string `json:"cluster,omitempty"`
}

// WalletResponse is the connected wallet and its SOL balance
type WalletResponse struct {
	Connected bool               `json:"connected"`
	Address   string             `json:"address,omitempty"`
	Balance   *models.SOLBalance `json:"balance,omitempty"`
}

// CreateMintRequest creates a new token mint. Decimals defaults to 9.
type CreateMintRequest struct {
	Decimals *int   `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// MintToRequest mints supply of the mint in the path. Decimals defaults to
// the watch list entry, then 9. An empty destination means the wallet itself.
type MintToRequest struct {
	Amount      string `json:"amount"`
	Decimals    *int   `json:"decimals"`
	Destination string `json:"destination"`
}

// TransferRequest sends tokens of the mint in the path.
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Decimals  *int   `json:"decimals"`
}

// WatchlistAddRequest adds a token to the session watch list
type WatchlistAddRequest struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about past operations
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	Rows   int    `json:"rows"`    // Rows the query returned
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
