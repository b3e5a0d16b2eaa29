// Package memory provides an in-process implementation of store.Store.
package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/store"
)

type allowanceKey struct {
	ledger common.Address
	token  common.Address
}

type recordKey struct {
	kind   store.RecordKind
	ledger common.Address
	agent  common.Address
	token  common.Address
}

// Store keeps committed state in maps. Writes made inside RunInTx are staged
// and applied only when the outermost transaction succeeds.
type Store struct {
	txMu sync.Mutex // held for the lifetime of the outermost transaction

	mu         sync.RWMutex // guards the committed state below
	allowances map[allowanceKey]*big.Int
	records    map[recordKey]*big.Int
	events     []*events.Event
	seq        int64
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		allowances: make(map[allowanceKey]*big.Int),
		records:    make(map[recordKey]*big.Int),
	}
}

// RunInTx runs fn in a transaction, joining the one carried by ctx if it
// belongs to this store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if existing, ok := store.TxFromContext(ctx); ok {
		if t, ok := existing.(*tx); ok && t.store == s {
			return fn(ctx, t)
		}
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{
		store:      s,
		allowances: make(map[allowanceKey]*big.Int),
		records:    make(map[recordKey]*big.Int),
	}
	if err := fn(store.ContextWithTx(ctx, t), t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range t.allowances {
		s.allowances[k] = v
	}
	for k, v := range t.records {
		s.records[k] = v
	}
	for _, e := range t.events {
		s.seq++
		e.Seq = s.seq
		s.events = append(s.events, e)
	}
}

// Allowance returns the committed allowance for token on ledger.
func (s *Store) Allowance(_ context.Context, ledger, token common.Address) (*big.Int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.allowances[allowanceKey{ledger: ledger, token: token}]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(v), true, nil
}

// Record returns the committed per-agent record.
func (s *Store) Record(_ context.Context, kind store.RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[recordKey{kind: kind, ledger: ledger, agent: agent, token: token}]
	if !ok {
		return nil, false, nil
	}
	return new(big.Int).Set(v), true, nil
}

// ListEvents returns committed events matching filter in emission order.
func (s *Store) ListEvents(_ context.Context, filter events.Filter) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*events.Event, 0)
	for _, e := range s.events {
		if !filter.Matches(e) {
			continue
		}
		cp := *e
		cp.Amount = new(big.Int).Set(e.Amount)
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

type tx struct {
	store      *Store
	allowances map[allowanceKey]*big.Int
	records    map[recordKey]*big.Int
	events     []*events.Event
}

func (t *tx) Allowance(ctx context.Context, ledger, token common.Address) (*big.Int, bool, error) {
	if v, ok := t.allowances[allowanceKey{ledger: ledger, token: token}]; ok {
		return new(big.Int).Set(v), true, nil
	}
	return t.store.Allowance(ctx, ledger, token)
}

func (t *tx) SetAllowance(_ context.Context, ledger, token common.Address, value *big.Int) error {
	t.allowances[allowanceKey{ledger: ledger, token: token}] = new(big.Int).Set(value)
	return nil
}

func (t *tx) Record(ctx context.Context, kind store.RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error) {
	if v, ok := t.records[recordKey{kind: kind, ledger: ledger, agent: agent, token: token}]; ok {
		return new(big.Int).Set(v), true, nil
	}
	return t.store.Record(ctx, kind, ledger, agent, token)
}

func (t *tx) SetRecord(_ context.Context, kind store.RecordKind, ledger, agent, token common.Address, value *big.Int) error {
	t.records[recordKey{kind: kind, ledger: ledger, agent: agent, token: token}] = new(big.Int).Set(value)
	return nil
}

func (t *tx) AppendEvent(_ context.Context, e *events.Event) error {
	t.events = append(t.events, e)
	return nil
}
