// Package dispatch maps bridge actions to the fixed routing tags (selectors)
// that address a ledger's deposit and withdraw entry points.
package dispatch

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownAction is returned for an Action value outside the closed set.
var ErrUnknownAction = errors.New("unknown bridge action")

// Action selects which remote operation a bridge-out call invokes.
type Action uint8

const (
	// Deposit routes to the remote ledger's deposit entry point.
	Deposit Action = iota + 1
	// Withdraw routes to the remote ledger's withdraw entry point.
	Withdraw
)

// String returns the lowercase action name.
func (a Action) String() string {
	switch a {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction converts a case-insensitive action name into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return Deposit, nil
	case "withdraw":
		return Withdraw, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Selector is a 4-byte routing tag naming an entry point on a callee.
type Selector [4]byte

// Entry point selectors. The integer values 240, 250 and 16843009 are
// encoded big-endian.
var (
	depositSelector  = Selector{0x00, 0x00, 0x00, 0xF0}
	withdrawSelector = Selector{0x00, 0x00, 0x00, 0xFA}
	bridgeInSelector = Selector{0x01, 0x01, 0x01, 0x01}
)

// DepositSelector addresses a ledger's deposit entry point.
func DepositSelector() Selector { return depositSelector }

// WithdrawSelector addresses a ledger's withdraw entry point.
func WithdrawSelector() Selector { return withdrawSelector }

// BridgeInSelector addresses a gateway's bridge-in entry point.
func BridgeInSelector() Selector { return bridgeInSelector }

// String returns the selector as 0x-prefixed hex.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// SelectorFor resolves an action to the selector of its remote entry point.
// Adding an Action requires adding a case here.
func SelectorFor(a Action) (Selector, error) {
	switch a {
	case Deposit:
		return depositSelector, nil
	case Withdraw:
		return withdrawSelector, nil
	}
	return Selector{}, fmt.Errorf("%w: %s", ErrUnknownAction, a)
}

// CallArgs are the arguments of a routed call. Deposit and withdraw carry
// (Token, Amount, Agent) in wire order; bridge-in carries Token, Amount and
// the origin Chain.
type CallArgs struct {
	Token  common.Address
	Amount *big.Int
	Agent  common.Address
	Chain  string
}
