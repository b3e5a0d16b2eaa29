// Package store defines the transactional state contract shared by the escrow
// ledger and the bridge gateway.
//
// A Store serializes invocations: RunInTx executes fn with exclusive access to
// the state, commits every write made through the Tx when fn returns nil, and
// discards all of them otherwise. Calling RunInTx with a context returned by an
// enclosing RunInTx joins the enclosing transaction instead of opening a new one,
// so a bridge-out and the ledger call it triggers commit or roll back together.
package store

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/escrow-bridge/pkg/events"
)

// RecordKind selects the per-agent record table.
type RecordKind string

const (
	DepositRecord  RecordKind = "deposit"
	WithdrawRecord RecordKind = "withdraw"
)

// Tx exposes reads and writes within a single transaction. Reads observe the
// transaction's own prior writes.
type Tx interface {
	Allowance(ctx context.Context, ledger, token common.Address) (*big.Int, bool, error)
	SetAllowance(ctx context.Context, ledger, token common.Address, value *big.Int) error
	Record(ctx context.Context, kind RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error)
	SetRecord(ctx context.Context, kind RecordKind, ledger, agent, token common.Address, value *big.Int) error
	AppendEvent(ctx context.Context, event *events.Event) error
}

// Reader exposes committed state outside of a transaction.
type Reader interface {
	Allowance(ctx context.Context, ledger, token common.Address) (*big.Int, bool, error)
	Record(ctx context.Context, kind RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error)
	ListEvents(ctx context.Context, filter events.Filter) ([]*events.Event, error)
}

// Store is a transactional state store.
type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type txKey struct{}

// ContextWithTx returns a copy of ctx carrying tx. Implementations call this
// before handing ctx to fn.
func ContextWithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(Tx)
	return tx, ok
}
