// Package pg implements store.Store on PostgreSQL using bun.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/store"
)

// invocationLock is the advisory lock key taken by every transaction so that
// invocations against one database run one at a time.
const invocationLock = 0x65736372 // "escr"

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of store.Store
func NewStore(db *bun.DB) store.Store {
	return &pgStore{db: db}
}

func (s *pgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if existing, ok := store.TxFromContext(ctx); ok {
		if t, ok := existing.(*pgTx); ok && t.owner == s {
			return fn(ctx, t)
		}
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, btx bun.Tx) error {
		if _, err := btx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", invocationLock); err != nil {
			return fmt.Errorf("failed to acquire invocation lock: %w", err)
		}
		t := &pgTx{owner: s, db: btx}
		return fn(store.ContextWithTx(ctx, t), t)
	})
}

func (s *pgStore) Allowance(ctx context.Context, ledger, token common.Address) (*big.Int, bool, error) {
	return getAllowance(ctx, s.db, ledger, token, false)
}

func (s *pgStore) Record(ctx context.Context, kind store.RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error) {
	return getRecord(ctx, s.db, kind, ledger, agent, token)
}

func (s *pgStore) ListEvents(ctx context.Context, filter events.Filter) ([]*events.Event, error) {
	var daos []EventDao
	query := s.db.NewSelect().Model(&daos).Where("seq > ?", filter.AfterSeq)

	if filter.Emitter != nil {
		query = query.Where("emitter = ?", addr(*filter.Emitter))
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.Token != nil {
		query = query.Where("token = ?", addr(*filter.Token))
	}
	query = query.Order("seq ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*events.Event, 0, len(daos))
	for i := range daos {
		e, err := toEvent(&daos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type pgTx struct {
	owner *pgStore
	db    bun.Tx
}

func (t *pgTx) Allowance(ctx context.Context, ledger, token common.Address) (*big.Int, bool, error) {
	return getAllowance(ctx, t.db, ledger, token, true)
}

func (t *pgTx) SetAllowance(ctx context.Context, ledger, token common.Address, value *big.Int) error {
	dao := &AllowanceDao{
		Ledger:  addr(ledger),
		Token:   addr(token),
		Balance: value.String(),
	}
	_, err := t.db.NewInsert().
		Model(dao).
		On("CONFLICT (ledger, token) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set allowance: %w", err)
	}
	return nil
}

func (t *pgTx) Record(ctx context.Context, kind store.RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error) {
	return getRecord(ctx, t.db, kind, ledger, agent, token)
}

func (t *pgTx) SetRecord(ctx context.Context, kind store.RecordKind, ledger, agent, token common.Address, value *big.Int) error {
	dao := &AgentRecordDao{
		Kind:    string(kind),
		Ledger:  addr(ledger),
		Agent:   addr(agent),
		Token:   addr(token),
		Balance: value.String(),
	}
	_, err := t.db.NewInsert().
		Model(dao).
		On("CONFLICT (kind, ledger, agent, token) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s record: %w", kind, err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e *events.Event) error {
	dao := toEventDao(e)
	if _, err := t.db.NewInsert().Model(dao).Returning("seq").Exec(ctx); err != nil {
		return fmt.Errorf("failed to append %s event: %w", e.Kind, err)
	}
	e.Seq = dao.Seq
	return nil
}

func getAllowance(ctx context.Context, db bun.IDB, ledger, token common.Address, forUpdate bool) (*big.Int, bool, error) {
	dao := new(AllowanceDao)
	query := db.NewSelect().
		Model(dao).
		Where("ledger = ?", addr(ledger)).
		Where("token = ?", addr(token))
	if forUpdate {
		query = query.For("UPDATE")
	}

	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get allowance: %w", err)
	}

	v, err := parseBalance(dao.Balance)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func getRecord(ctx context.Context, db bun.IDB, kind store.RecordKind, ledger, agent, token common.Address) (*big.Int, bool, error) {
	dao := new(AgentRecordDao)
	err := db.NewSelect().
		Model(dao).
		Where("kind = ?", string(kind)).
		Where("ledger = ?", addr(ledger)).
		Where("agent = ?", addr(agent)).
		Where("token = ?", addr(token)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s record: %w", kind, err)
	}

	v, err := parseBalance(dao.Balance)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
