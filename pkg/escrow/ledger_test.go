package escrow

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/store/memory"
)

var (
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenA     = common.HexToAddress("0x000000000000000000000000000000000000a001")
	tokenB     = common.HexToAddress("0x000000000000000000000000000000000000a002")
	agentX     = common.HexToAddress("0x000000000000000000000000000000000000b001")
	agentY     = common.HexToAddress("0x000000000000000000000000000000000000b002")
)

func newLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewLedger(ledgerAddr, st), st
}

func requireAllowance(t *testing.T, l *Ledger, token Token, want int64) {
	t.Helper()
	v, ok, err := l.GetAllowance(context.Background(), token)
	require.NoError(t, err)
	require.True(t, ok, "allowance for %s not found", token.Hex())
	assert.Equal(t, want, v.Int64())
}

func listEvents(t *testing.T, st *memory.Store) []*events.Event {
	t.Helper()
	evs, err := st.ListEvents(context.Background(), events.Filter{})
	require.NoError(t, err)
	return evs
}

func TestLedger_Scenarios(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)

	// initialize(tokenA, 100)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))
	requireAllowance(t, l, tokenA, 100)
	evs := listEvents(t, st)
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindInitiated, evs[0].Kind)
	assert.Equal(t, tokenA, evs[0].Token)
	assert.Equal(t, int64(100), evs[0].Amount.Int64())

	// deposit(tokenA, 50, X)
	next, err := l.Deposit(ctx, tokenA, big.NewInt(50), agentX)
	require.NoError(t, err)
	assert.Equal(t, int64(150), next.Int64())
	requireAllowance(t, l, tokenA, 150)
	dep, ok, err := l.GetDeposit(ctx, tokenA, agentX)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(150), dep.Int64())

	// withdraw(tokenA, 200, Y) with allowance 150
	next, err = l.Withdraw(ctx, tokenA, big.NewInt(200), agentY)
	assert.Nil(t, next)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.False(t, IsFatal(err))
	requireAllowance(t, l, tokenA, 150)
	_, ok, err = l.GetWithdraw(ctx, tokenA, agentY)
	require.NoError(t, err)
	assert.False(t, ok)

	// withdraw(tokenA, 100, Y) with allowance 150
	next, err = l.Withdraw(ctx, tokenA, big.NewInt(100), agentY)
	require.NoError(t, err)
	assert.Equal(t, int64(50), next.Int64())
	requireAllowance(t, l, tokenA, 50)
	wd, ok, err := l.GetWithdraw(ctx, tokenA, agentY)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(50), wd.Int64())

	evs = listEvents(t, st)
	require.Len(t, evs, 3)
	assert.Equal(t, events.KindDeposited, evs[1].Kind)
	assert.Equal(t, agentX, evs[1].Agent)
	assert.Equal(t, int64(50), evs[1].Amount.Int64())
	assert.Equal(t, events.KindWithdrawn, evs[2].Kind)
	assert.Equal(t, agentY, evs[2].Agent)
	assert.Equal(t, int64(100), evs[2].Amount.Int64())
}

// Records hold the resulting global allowance, not per-agent totals.
func TestLedger_RecordsHoldResultingAllowance(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))
	_, err := l.Deposit(ctx, tokenA, big.NewInt(10), agentX)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, tokenA, big.NewInt(5), agentY)
	require.NoError(t, err)

	dx, _, err := l.GetDeposit(ctx, tokenA, agentX)
	require.NoError(t, err)
	dy, _, err := l.GetDeposit(ctx, tokenA, agentY)
	require.NoError(t, err)
	assert.Equal(t, int64(110), dx.Int64())
	assert.Equal(t, int64(115), dy.Int64())

	_, err = l.Deposit(ctx, tokenA, big.NewInt(1), agentX)
	require.NoError(t, err)
	dx, _, err = l.GetDeposit(ctx, tokenA, agentX)
	require.NoError(t, err)
	assert.Equal(t, int64(116), dx.Int64(), "record is overwritten, not accumulated")
}

func TestLedger_UnknownTokenIsFatal(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))

	_, err := l.Deposit(ctx, tokenB, big.NewInt(1), agentX)
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.True(t, IsFatal(err))

	_, err = l.Withdraw(ctx, tokenB, big.NewInt(1), agentX)
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, ok, err := l.GetAllowance(ctx, tokenB)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = l.GetDeposit(ctx, tokenB, agentX)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, listEvents(t, st), 1)
}

func TestLedger_InitializeTwiceRejected(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)

	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))
	err := l.Initialize(ctx, tokenA, big.NewInt(5))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	requireAllowance(t, l, tokenA, 100)
	assert.Len(t, listEvents(t, st), 1)
}

func TestLedger_InvalidAmounts(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(1)))

	tooBig := new(big.Int).Add(MaxBalance, big.NewInt(1))
	for name, amount := range map[string]*big.Int{
		"nil":      nil,
		"negative": big.NewInt(-1),
		"too big":  tooBig,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, l.Initialize(ctx, tokenB, amount), ErrInvalidAmount)
			_, err := l.Deposit(ctx, tokenA, amount, agentX)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			_, err = l.Withdraw(ctx, tokenA, amount, agentX)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
	requireAllowance(t, l, tokenA, 1)
}

func TestLedger_DepositOverflow(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)

	require.NoError(t, l.Initialize(ctx, tokenA, MaxBalance))
	_, err := l.Deposit(ctx, tokenA, big.NewInt(1), agentX)
	assert.ErrorIs(t, err, ErrAllowanceOverflow)
	assert.True(t, IsFatal(err))

	v, _, err := l.GetAllowance(ctx, tokenA)
	require.NoError(t, err)
	assert.Equal(t, 0, MaxBalance.Cmp(v))
	assert.Len(t, listEvents(t, st), 1)
}

func TestLedger_WithdrawExactAllowance(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(30)))
	next, err := l.Withdraw(ctx, tokenA, big.NewInt(30), agentX)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Sign())
	requireAllowance(t, l, tokenA, 0)
	_, err = l.Withdraw(ctx, tokenA, big.NewInt(1), agentX)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestLedger_GettersAreIdempotent(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))

	for i := 0; i < 3; i++ {
		requireAllowance(t, l, tokenA, 100)
	}
	assert.Len(t, listEvents(t, st), 1)
}

func TestLedger_Handle(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(100)))

	args := dispatch.CallArgs{Token: tokenA, Amount: big.NewInt(20), Agent: agentX}
	require.NoError(t, l.Handle(ctx, dispatch.DepositSelector(), args))
	requireAllowance(t, l, tokenA, 120)

	require.NoError(t, l.Handle(ctx, dispatch.WithdrawSelector(), args))
	requireAllowance(t, l, tokenA, 100)

	err := l.Handle(ctx, dispatch.BridgeInSelector(), args)
	assert.ErrorIs(t, err, ErrUnknownSelector)

	err = l.Handle(ctx, dispatch.Selector{240, 0, 0, 0}, args)
	assert.ErrorIs(t, err, ErrUnknownSelector)
	requireAllowance(t, l, tokenA, 100)
}

func TestLedger_LedgersAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	a := NewLedger(ledgerAddr, st)
	b := NewLedger(common.HexToAddress("0xe2"), st)

	require.NoError(t, a.Initialize(ctx, tokenA, big.NewInt(10)))
	_, ok, err := b.GetAllowance(ctx, tokenA)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = b.Deposit(ctx, tokenA, big.NewInt(1), agentX)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestLedger_ConcurrentMovementsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	require.NoError(t, l.Initialize(ctx, tokenA, big.NewInt(50)))

	var deposited, withdrawn atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := l.Deposit(ctx, tokenA, big.NewInt(3), agentX); err == nil {
				deposited.Add(3)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(ctx, tokenA, big.NewInt(7), agentY)
			switch {
			case err == nil:
				withdrawn.Add(7)
			case !errors.Is(err, ErrInsufficientAllowance):
				t.Errorf("unexpected withdraw error: %v", err)
			}
		}()
	}
	wg.Wait()

	v, _, err := l.GetAllowance(ctx, tokenA)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v.Sign(), 0)
	assert.Equal(t, 50+deposited.Load()-withdrawn.Load(), v.Int64())
}
