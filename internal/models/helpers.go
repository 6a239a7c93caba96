package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// TokenDecimals is the number of decimal places of one GUESS token.
const TokenDecimals = 18

var tokenUnit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(TokenDecimals))

func GenerateEventID() string {
	return fmt.Sprintf("evt_%s_%s",
		time.Now().Format("20060102"),
		uuid.NewString())
}

func GenerateTransferID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().Format("20060102"),
		uuid.NewString())
}

// Tokens returns n whole tokens in base units.
func Tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), tokenUnit)
}

// ParseAmount parses a base-unit decimal string.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// FormatTokens renders a base-unit amount as whole tokens with the
// fractional part trimmed, e.g. "12.5".
func FormatTokens(amount *uint256.Int) string {
	whole, frac := new(uint256.Int).DivMod(amount, tokenUnit, new(uint256.Int))
	if frac.IsZero() {
		return whole.Dec()
	}
	fs := frac.Dec()
	fs = strings.Repeat("0", TokenDecimals-len(fs)) + fs
	return whole.Dec() + "." + strings.TrimRight(fs, "0")
}

func (r *PlayRequest) Validate() error {
	if r.Guess == nil {
		return fmt.Errorf("guess is required")
	}
	if *r.Guess < MinGuess || *r.Guess > MaxGuess {
		return fmt.Errorf("guess must be between %d and %d", MinGuess, MaxGuess)
	}
	return nil
}
