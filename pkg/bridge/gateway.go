// Package bridge implements the bridge gateway: it re-emits inbound transfer
// notifications and executes outbound transfers against a remote escrow
// ledger through a Host.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/escrow-bridge/internal/metrics"
	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
	"github.com/chainsafe/escrow-bridge/pkg/events"
	"github.com/chainsafe/escrow-bridge/pkg/store"
)

var (
	ErrInvalidRecipient = errors.New("recipient is not a contract")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnknownSelector  = errors.New("unknown selector")
)

// Host is the environment capability the gateway needs: a contract check and
// a synchronous cross-contract call.
type Host interface {
	IsContract(ctx context.Context, address common.Address) (bool, error)
	Invoke(ctx context.Context, callee common.Address, selector dispatch.Selector, args dispatch.CallArgs) error
}

// TxJoiner is implemented by hosts whose calls run against the gateway's own
// store and join the transaction carried by ctx.
type TxJoiner interface {
	JoinsStoreTx() bool
}

// RemoteCallError wraps a failed remote ledger invocation.
type RemoteCallError struct {
	Callee common.Address
	Action dispatch.Action
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote %s on %s failed: %v", e.Action, e.Callee.Hex(), e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// BridgeOutRequest describes an outbound transfer.
type BridgeOutRequest struct {
	Token     common.Address
	Recipient common.Address
	Agent     common.Address
	Amount    *big.Int
	Action    dispatch.Action
}

// Gateway is the bridge contract.
type Gateway struct {
	address common.Address
	host    Host
	joinsTx bool
	store   store.Store
	logger  *zap.Logger
}

// NewGateway creates a gateway identified by address.
func NewGateway(address common.Address, host Host, st store.Store, logger *zap.Logger) *Gateway {
	g := &Gateway{
		address: address,
		host:    host,
		store:   st,
		logger:  logger,
	}
	if j, ok := host.(TxJoiner); ok {
		g.joinsTx = j.JoinsStoreTx()
	}
	return g
}

// Address returns the gateway's own identity.
func (g *Gateway) Address() common.Address {
	return g.address
}

// BridgeIn records that amount of token arrived from originChain. The
// gateway itself is the recipient; no ledger is touched.
func (g *Gateway) BridgeIn(ctx context.Context, token common.Address, originChain string, amount *big.Int) (*events.Event, error) {
	if err := checkAmount(amount); err != nil {
		metrics.BridgeRequestsTotal.WithLabelValues("in", "", "rejected").Inc()
		return nil, err
	}

	ev := events.BridgeIn(g.address, token, g.address, originChain, amount)
	err := g.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.AppendEvent(ctx, ev)
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("gateway", "store").Inc()
		return nil, fmt.Errorf("failed to record bridge-in: %w", err)
	}

	metrics.BridgeRequestsTotal.WithLabelValues("in", "", "completed").Inc()
	return ev, nil
}

// Handle routes a call made to the gateway through a host. Only the bridge-in
// entry point is exposed.
func (g *Gateway) Handle(ctx context.Context, selector dispatch.Selector, args dispatch.CallArgs) error {
	if selector != dispatch.BridgeInSelector() {
		return fmt.Errorf("%w: %s", ErrUnknownSelector, selector)
	}
	_, err := g.BridgeIn(ctx, args.Token, args.Chain, args.Amount)
	return err
}

// BridgeOut invokes the deposit or withdraw entry point of the ledger at
// req.Recipient with (token, amount, agent) and records BridgeOut on success.
// When the host joins the store transaction, the remote call and the event
// commit together. Otherwise the call runs with no transaction open and the
// event is recorded after it returns.
func (g *Gateway) BridgeOut(ctx context.Context, req BridgeOutRequest) (*events.Event, error) {
	ev, err := g.bridgeOut(ctx, req)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.BridgeRequestsTotal.WithLabelValues("out", req.Action.String(), status).Inc()
	return ev, err
}

// BridgeOutFromSelf is BridgeOut with the gateway acting as the agent.
func (g *Gateway) BridgeOutFromSelf(
	ctx context.Context,
	token, recipient common.Address,
	amount *big.Int,
	action dispatch.Action,
) (*events.Event, error) {
	return g.BridgeOut(ctx, BridgeOutRequest{
		Token:     token,
		Recipient: recipient,
		Agent:     g.address,
		Amount:    amount,
		Action:    action,
	})
}

func (g *Gateway) bridgeOut(ctx context.Context, req BridgeOutRequest) (*events.Event, error) {
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}

	isContract, err := g.host.IsContract(ctx, req.Recipient)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("gateway", "host").Inc()
		return nil, fmt.Errorf("failed to check recipient %s: %w", req.Recipient.Hex(), err)
	}
	if !isContract {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipient, req.Recipient.Hex())
	}

	selector, err := dispatch.SelectorFor(req.Action)
	if err != nil {
		return nil, err
	}

	invoke := func(ctx context.Context) error {
		start := time.Now()
		callErr := g.host.Invoke(ctx, req.Recipient, selector, dispatch.CallArgs{
			Token:  req.Token,
			Amount: req.Amount,
			Agent:  req.Agent,
		})
		metrics.RemoteCallDuration.WithLabelValues(req.Action.String()).Observe(time.Since(start).Seconds())
		if callErr != nil {
			return &RemoteCallError{Callee: req.Recipient, Action: req.Action, Err: callErr}
		}
		return nil
	}

	var ev *events.Event
	record := func(ctx context.Context, tx store.Tx) error {
		ev = events.BridgeOut(g.address, req.Token, req.Recipient, req.Agent, req.Amount, req.Action.String())
		return tx.AppendEvent(ctx, ev)
	}

	if g.joinsTx {
		err = g.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := invoke(ctx); err != nil {
				return err
			}
			return record(ctx, tx)
		})
	} else if err = invoke(ctx); err == nil {
		// The call is applied remotely; record it even if the caller is gone.
		err = g.store.RunInTx(context.WithoutCancel(ctx), record)
	}
	if err != nil {
		var rce *RemoteCallError
		if errors.As(err, &rce) {
			metrics.ErrorsTotal.WithLabelValues("gateway", "remote_call").Inc()
			g.logger.Warn("remote ledger call failed",
				zap.String("callee", req.Recipient.Hex()),
				zap.String("action", req.Action.String()),
				zap.String("selector", selector.String()),
				zap.Error(rce.Err))
			return nil, err
		}
		metrics.ErrorsTotal.WithLabelValues("gateway", "store").Inc()
		// A host that does not join the transaction has already applied the
		// call at this point.
		g.logger.Error("failed to record bridge-out after remote call",
			zap.String("callee", req.Recipient.Hex()),
			zap.String("action", req.Action.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record bridge-out: %w", err)
	}
	return ev, nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}
