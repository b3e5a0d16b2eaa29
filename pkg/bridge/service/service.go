package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/chainsafe/escrow-bridge/pkg/app/errors"
	"github.com/chainsafe/escrow-bridge/pkg/bridge"
	"github.com/chainsafe/escrow-bridge/pkg/dispatch"
	"github.com/chainsafe/escrow-bridge/pkg/escrow"
	"github.com/chainsafe/escrow-bridge/pkg/events"
)

// Gateway is the bridge gateway surface used by the service.
type Gateway interface {
	BridgeIn(ctx context.Context, token common.Address, originChain string, amount *big.Int) (*events.Event, error)
	BridgeOut(ctx context.Context, req bridge.BridgeOutRequest) (*events.Event, error)
	BridgeOutFromSelf(ctx context.Context, token, recipient common.Address, amount *big.Int, action dispatch.Action) (*events.Event, error)
}

// EventReader lists emitted events.
type EventReader interface {
	ListEvents(ctx context.Context, filter events.Filter) ([]*events.Event, error)
}

// Service defines the bridge operations exposed over HTTP.
type Service interface {
	BridgeIn(ctx context.Context, req *BridgeInRequest) (*EventResponse, error)
	BridgeOut(ctx context.Context, req *BridgeOutRequest) (*EventResponse, error)
	ListEvents(ctx context.Context, query *EventQuery) (*EventsResponse, error)
}

type bridgeService struct {
	gateway Gateway
	events  EventReader
}

// NewService creates a new bridge service
func NewService(gateway Gateway, reader EventReader) Service {
	return &bridgeService{gateway: gateway, events: reader}
}

func (s *bridgeService) BridgeIn(ctx context.Context, req *BridgeInRequest) (*EventResponse, error) {
	amount, err := escrow.ParseAmount(req.Amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid amount")
	}

	ev, err := s.gateway.BridgeIn(ctx, common.HexToAddress(req.Token), req.OriginChain, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return toEventResponse(ev), nil
}

func (s *bridgeService) BridgeOut(ctx context.Context, req *BridgeOutRequest) (*EventResponse, error) {
	amount, err := escrow.ParseAmount(req.Amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid amount")
	}
	action, err := dispatch.ParseAction(req.Action)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid action")
	}
	token := common.HexToAddress(req.Token)
	recipient := common.HexToAddress(req.Recipient)

	var ev *events.Event
	if req.Agent == "" {
		ev, err = s.gateway.BridgeOutFromSelf(ctx, token, recipient, amount, action)
	} else {
		ev, err = s.gateway.BridgeOut(ctx, bridge.BridgeOutRequest{
			Token:     token,
			Recipient: recipient,
			Agent:     common.HexToAddress(req.Agent),
			Amount:    amount,
			Action:    action,
		})
	}
	if err != nil {
		return nil, mapError(err)
	}
	return toEventResponse(ev), nil
}

func (s *bridgeService) ListEvents(ctx context.Context, query *EventQuery) (*EventsResponse, error) {
	filter := events.Filter{
		Kind:     events.Kind(query.Kind),
		AfterSeq: query.After,
		Limit:    query.Limit,
	}
	if query.Emitter != "" {
		emitter := common.HexToAddress(query.Emitter)
		filter.Emitter = &emitter
	}
	if query.Token != "" {
		token := common.HexToAddress(query.Token)
		filter.Token = &token
	}

	evs, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	resp := &EventsResponse{Events: make([]*EventResponse, 0, len(evs))}
	for _, e := range evs {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	return resp, nil
}

// mapError converts gateway failures to service errors.
func mapError(err error) error {
	var rce *bridge.RemoteCallError
	switch {
	case errors.As(err, &rce):
		return apperrors.DependencyError(err, fmt.Sprintf("remote %s failed", rce.Action))
	case errors.Is(err, bridge.ErrInvalidRecipient):
		return apperrors.BadRequestError(err, "recipient is not a contract")
	case errors.Is(err, bridge.ErrInvalidAmount):
		return apperrors.BadRequestError(err, "invalid amount")
	case errors.Is(err, dispatch.ErrUnknownAction):
		return apperrors.BadRequestError(err, "invalid action")
	default:
		return err
	}
}
