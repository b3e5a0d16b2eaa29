// Package escrow implements the escrow ledger: per-token allowances that
// agents deposit into and withdraw from, with every movement recorded as an
// event.
package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies an asset kind.
type Token = common.Address

// Agent identifies a party that deposits or withdraws.
type Agent = common.Address

// MaxBalance is the largest allowance a ledger can hold (2^128 - 1).
var MaxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

var (
	// ErrUnknownToken aborts the whole invocation: the token was never initialized.
	ErrUnknownToken = errors.New("unknown token")
	// ErrAllowanceOverflow aborts the whole invocation: a deposit would push
	// the allowance past MaxBalance.
	ErrAllowanceOverflow = errors.New("allowance overflow")

	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAlreadyInitialized    = errors.New("token already initialized")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownSelector       = errors.New("unknown selector")
)

// IsFatal reports whether err belongs to the abort class: unknown token or
// allowance overflow.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnknownToken) || errors.Is(err, ErrAllowanceOverflow)
}

func validateAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	if amount.Cmp(MaxBalance) > 0 {
		return fmt.Errorf("%w: %s exceeds maximum balance", ErrInvalidAmount, amount)
	}
	return nil
}

func unknownToken(token Token) error {
	return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
}
