// Package host is an in-process contract host. Contracts registered at an
// address receive selector-routed calls synchronously, in the caller's
// context, so they join any store transaction the caller has open.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
)

// ErrNotContract is returned when invoking an address with no registered contract.
var ErrNotContract = errors.New("address is not a contract")

// Contract handles calls routed by selector.
type Contract interface {
	Handle(ctx context.Context, selector dispatch.Selector, args dispatch.CallArgs) error
}

// Registry maps addresses to contracts.
type Registry struct {
	mu        sync.RWMutex
	contracts map[common.Address]Contract
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[common.Address]Contract)}
}

// Register deploys c at address, replacing any previous contract there.
func (r *Registry) Register(address common.Address, c Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[address] = c
}

// IsContract reports whether a contract is registered at address.
func (r *Registry) IsContract(_ context.Context, address common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contracts[address]
	return ok, nil
}

// JoinsStoreTx reports true: contracts run in the caller's context and share
// its store transaction.
func (r *Registry) JoinsStoreTx() bool {
	return true
}

// Invoke calls the contract at callee and returns its error unchanged.
func (r *Registry) Invoke(ctx context.Context, callee common.Address, selector dispatch.Selector, args dispatch.CallArgs) error {
	r.mu.RLock()
	c, ok := r.contracts[callee]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotContract, callee.Hex())
	}
	return c.Handle(ctx, selector, args)
}
