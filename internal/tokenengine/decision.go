package tokenengine

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// Amount bounds checked before any arithmetic. A u64 has 20 digits, so no
// valid amount needs more, and exponents outside this window only come from
// scientific notation.
const (
	maxAmountLen = 64
	minAmountExp = -64
	maxAmountExp = 32
	maxU64Digits = 20
)

// ParseAddress decodes a base58 account address. It must decode to exactly
// 32 bytes.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("address is empty")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("address %q is not base58: %w", s, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("address %q decodes to %d bytes, want %d", s, len(raw), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// ValidateDecimals checks the decimals of a mint.
func ValidateDecimals(d int) error {
	if d < 0 || d > constants.MaxTokenDecimals {
		return fmt.Errorf("decimals must be between 0 and %d, got %d", constants.MaxTokenDecimals, d)
	}
	return nil
}

// ParseAmount parses a non-negative human-readable amount exactly.
func ParseAmount(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	if len(amount) > maxAmountLen {
		return decimal.Zero, fmt.Errorf("amount is longer than %d characters", maxAmountLen)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number", amount)
	}
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return decimal.Zero, fmt.Errorf("amount %q is out of range", amount)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative, got %s", amount)
	}
	return d, nil
}

// ToBaseUnits converts a human amount to base units: floor(amount * 10^decimals).
// The conversion is exact; amounts that overflow a u64 are rejected.
func ToBaseUnits(amount string, decimals int) (uint64, error) {
	if err := ValidateDecimals(decimals); err != nil {
		return 0, err
	}
	d, err := ParseAmount(amount)
	if err != nil {
		return 0, err
	}
	return shiftToBaseUnits(d, decimals)
}

func shiftToBaseUnits(d decimal.Decimal, decimals int) (uint64, error) {
	// integer digits after the shift; more than a u64 holds is an overflow
	// and is rejected without expanding the number
	if !d.IsZero() && d.NumDigits()+int(d.Exponent())+decimals > maxU64Digits {
		return 0, fmt.Errorf("amount at %d decimals exceeds the token maximum", decimals)
	}
	units := d.Shift(int32(decimals)).Floor()
	if units.GreaterThan(maxBaseUnits) {
		return 0, fmt.Errorf("amount at %d decimals exceeds the token maximum", decimals)
	}
	return units.BigInt().Uint64(), nil
}

// FromBaseUnits renders a raw base-unit amount as an exact decimal string.
func FromBaseUnits(raw string, decimals int) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return "", fmt.Errorf("amount %q is not an integer", raw)
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String(), nil
}

// validate checks a request without touching the ledger.
func validate(req Request) error {
	op := req.Kind()
	if req.RequesterKey().IsZero() {
		return invalid(op, "wallet not connected")
	}

	switch r := req.(type) {
	case CreateMintRequest:
		if err := ValidateDecimals(r.Decimals); err != nil {
			return invalid(op, "%v", err)
		}
	case MintToRequest:
		if _, err := ParseAddress(r.MintAddress); err != nil {
			return invalid(op, "mint: %v", err)
		}
		if r.DestinationOwner != "" {
			if _, err := ParseAddress(r.DestinationOwner); err != nil {
				return invalid(op, "destination: %v", err)
			}
		}
		if _, err := ToBaseUnits(r.Amount, r.Decimals); err != nil {
			return invalid(op, "%v", err)
		}
	case TransferRequest:
		if _, err := ParseAddress(r.MintAddress); err != nil {
			return invalid(op, "mint: %v", err)
		}
		if _, err := ParseAddress(r.RecipientOwner); err != nil {
			return invalid(op, "recipient: %v", err)
		}
		if _, err := ToBaseUnits(r.Amount, r.Decimals); err != nil {
			return invalid(op, "%v", err)
		}
	default:
		return invalid(op, "unsupported request %T", req)
	}
	return nil
}
