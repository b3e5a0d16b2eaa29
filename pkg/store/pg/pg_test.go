package pg

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/pgutil"
	mghelper "github.com/chainsafe/escrow-bridge/pkg/pgutil/migrations"
	"github.com/chainsafe/escrow-bridge/pkg/store"
)

var (
	ledgerA = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenA  = common.HexToAddress("0x000000000000000000000000000000000000a001")
	agentX  = common.HexToAddress("0x000000000000000000000000000000000000b001")
)

func setupStore(t *testing.T) (context.Context, store.Store) {
	t.Helper()
	pgutil.RequireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &AllowanceDao{}, &AgentRecordDao{}, &EventDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return ctx, NewStore(db)
}

func TestPgStore_CommitAndRead(t *testing.T) {
	ctx, s := setupStore(t)

	// exceeds uint64 to make sure numeric(78,0) round-trips
	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetAllowance(ctx, ledgerA, tokenA, huge); err != nil {
			return err
		}
		v, ok, err := tx.Allowance(ctx, ledgerA, tokenA)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, huge.Cmp(v))

		if err := tx.SetRecord(ctx, store.DepositRecord, ledgerA, agentX, tokenA, big.NewInt(150)); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, events.Deposited(ledgerA, tokenA, big.NewInt(50), agentX))
	})
	require.NoError(t, err)

	v, ok, err := s.Allowance(ctx, ledgerA, tokenA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, huge.Cmp(v))

	r, ok, err := s.Record(ctx, store.DepositRecord, ledgerA, agentX, tokenA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(150), r.Int64())

	_, ok, err = s.Record(ctx, store.WithdrawRecord, ledgerA, agentX, tokenA)
	require.NoError(t, err)
	assert.False(t, ok)

	evs, err := s.ListEvents(ctx, events.Filter{Kind: events.KindDeposited})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, agentX, evs[0].Agent)
	assert.Equal(t, int64(50), evs[0].Amount.Int64())
	assert.Equal(t, common.Address{}, evs[0].Recipient)
	assert.Positive(t, evs[0].Seq)
}

func TestPgStore_UpsertOverwrites(t *testing.T) {
	ctx, s := setupStore(t)

	for _, n := range []int64{100, 70} {
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.SetAllowance(ctx, ledgerA, tokenA, big.NewInt(n))
		}))
	}

	v, _, err := s.Allowance(ctx, ledgerA, tokenA)
	require.NoError(t, err)
	assert.Equal(t, int64(70), v.Int64())
}

func TestPgStore_RollbackIncludesNested(t *testing.T) {
	ctx, s := setupStore(t)
	boom := errors.New("remote failed")

	err := s.RunInTx(ctx, func(ctx context.Context, outer store.Tx) error {
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, inner store.Tx) error {
			assert.Same(t, outer, inner)
			return inner.SetAllowance(ctx, ledgerA, tokenA, big.NewInt(5))
		}))
		require.NoError(t, outer.AppendEvent(ctx, events.BridgeIn(ledgerA, tokenA, ledgerA, "chainX", big.NewInt(5))))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := s.Allowance(ctx, ledgerA, tokenA)
	require.NoError(t, err)
	assert.False(t, ok)

	evs, err := s.ListEvents(ctx, events.Filter{})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestPgStore_ListEventsPaging(t *testing.T) {
	ctx, s := setupStore(t)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for i := int64(1); i <= 3; i++ {
			if err := tx.AppendEvent(ctx, events.Withdrawn(ledgerA, tokenA, big.NewInt(i), agentX)); err != nil {
				return err
			}
		}
		return nil
	}))

	first, err := s.ListEvents(ctx, events.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)

	rest, err := s.ListEvents(ctx, events.Filter{AfterSeq: first[0].Seq, Emitter: &ledgerA})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(2), rest[0].Amount.Int64())
	assert.Equal(t, int64(3), rest[1].Amount.Int64())
}
