package escrow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/store"
)

// Ledger is an escrow ledger bound to a contract address. All state lives in
// the store; every mutation runs in a single store transaction.
type Ledger struct {
	address common.Address
	store   store.Store
}

// NewLedger creates a ledger identified by address.
func NewLedger(address common.Address, st store.Store) *Ledger {
	return &Ledger{address: address, store: st}
}

// Address returns the ledger's contract address.
func (l *Ledger) Address() common.Address {
	return l.address
}

// Initialize seeds the allowance for token and emits Initiated.
func (l *Ledger) Initialize(ctx context.Context, token Token, initialValue *big.Int) error {
	if err := validateAmount(initialValue); err != nil {
		return err
	}

	return l.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, exists, err := tx.Allowance(ctx, l.address, token)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, token.Hex())
		}

		if err = tx.SetAllowance(ctx, l.address, token, initialValue); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, events.Initiated(l.address, token, initialValue))
	})
}

// Deposit adds amount to the allowance for token and returns the resulting
// allowance.
//
// The depositor's record is overwritten with the resulting global allowance,
// not the depositor's cumulative contribution.
func (l *Ledger) Deposit(ctx context.Context, token Token, amount *big.Int, depositor Agent) (*big.Int, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var next *big.Int
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		allowance, exists, err := tx.Allowance(ctx, l.address, token)
		if err != nil {
			return err
		}
		if !exists {
			return unknownToken(token)
		}

		next = new(big.Int).Add(allowance, amount)
		if next.Cmp(MaxBalance) > 0 {
			return fmt.Errorf("%w: %s + %s", ErrAllowanceOverflow, allowance, amount)
		}

		if err = tx.SetAllowance(ctx, l.address, token, next); err != nil {
			return err
		}
		if err = tx.SetRecord(ctx, store.DepositRecord, l.address, depositor, token, next); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, events.Deposited(l.address, token, amount, depositor))
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Withdraw subtracts amount from the allowance for token and returns the
// resulting allowance. It fails with ErrInsufficientAllowance, changing
// nothing, when amount exceeds the allowance. The withdrawer's record holds
// the resulting global allowance.
func (l *Ledger) Withdraw(ctx context.Context, token Token, amount *big.Int, withdrawer Agent) (*big.Int, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var next *big.Int
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		allowance, exists, err := tx.Allowance(ctx, l.address, token)
		if err != nil {
			return err
		}
		if !exists {
			return unknownToken(token)
		}
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientAllowance, amount, allowance)
		}

		next = new(big.Int).Sub(allowance, amount)
		if err = tx.SetAllowance(ctx, l.address, token, next); err != nil {
			return err
		}
		if err = tx.SetRecord(ctx, store.WithdrawRecord, l.address, withdrawer, token, next); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, events.Withdrawn(l.address, token, amount, withdrawer))
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// GetAllowance returns the current allowance for token. The bool is false
// when the token was never initialized.
func (l *Ledger) GetAllowance(ctx context.Context, token Token) (*big.Int, bool, error) {
	return l.store.Allowance(ctx, l.address, token)
}

// GetDeposit returns the last deposit record of agent for token.
func (l *Ledger) GetDeposit(ctx context.Context, token Token, agent Agent) (*big.Int, bool, error) {
	return l.store.Record(ctx, store.DepositRecord, l.address, agent, token)
}

// GetWithdraw returns the last withdraw record of agent for token.
func (l *Ledger) GetWithdraw(ctx context.Context, token Token, agent Agent) (*big.Int, bool, error) {
	return l.store.Record(ctx, store.WithdrawRecord, l.address, agent, token)
}

// Handle routes an inbound call to the entry point registered for selector.
func (l *Ledger) Handle(ctx context.Context, selector dispatch.Selector, args dispatch.CallArgs) error {
	switch selector {
	case dispatch.DepositSelector():
		_, err := l.Deposit(ctx, args.Token, args.Amount, args.Agent)
		return err
	case dispatch.WithdrawSelector():
		_, err := l.Withdraw(ctx, args.Token, args.Amount, args.Agent)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownSelector, selector)
}
