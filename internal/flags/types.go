package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// OperationPrefix namespaces the kill switches checked before each token
// operation is submitted, e.g. "tokenops.mint_to".
const OperationPrefix = "tokenops."

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OperationKey returns the flag key guarding an operation kind.
func OperationKey(kind string) string {
	return OperationPrefix + kind
}
