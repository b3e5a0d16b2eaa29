package service

import (
	"time"

	"github.com/chainsafe/escrow-bridge/pkg/escrow"
	"github.com/chainsafe/escrow-bridge/pkg/events"
)

// BridgeInRequest is the body of an inbound transfer notification.
type BridgeInRequest struct {
	Token       string `json:"token" validate:"required,eth_addr"`
	OriginChain string `json:"origin_chain" validate:"required,max=255"`
	Amount      string `json:"amount" validate:"required"`
}

// BridgeOutRequest is the body of an outbound transfer. When Agent is empty
// the gateway acts as the agent.
type BridgeOutRequest struct {
	Token     string `json:"token" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	Agent     string `json:"agent,omitempty" validate:"omitempty,eth_addr"`
	Amount    string `json:"amount" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=deposit withdraw"`
}

// EventQuery holds the /v1/events query parameters.
type EventQuery struct {
	Emitter string `validate:"omitempty,eth_addr"`
	Kind    string `validate:"omitempty,oneof=initiated deposited withdrawn bridge_in bridge_out"`
	Token   string `validate:"omitempty,eth_addr"`
	After   int64  `validate:"min=0"`
	Limit   int    `default:"100" validate:"min=1,max=1000"`
}

// EventResponse is the JSON form of an emitted event.
type EventResponse struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Emitter   string    `json:"emitter"`
	Kind      string    `json:"kind"`
	Token     string    `json:"token"`
	Amount    string    `json:"amount"`
	Agent     string    `json:"agent,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Chain     string    `json:"chain,omitempty"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventsResponse is a page of events.
type EventsResponse struct {
	Events []*EventResponse `json:"events"`
}

func toEventResponse(e *events.Event) *EventResponse {
	resp := &EventResponse{
		ID:        e.ID.String(),
		Seq:       e.Seq,
		Emitter:   e.Emitter.Hex(),
		Kind:      string(e.Kind),
		Token:     e.Token.Hex(),
		Amount:    escrow.FormatAmount(e.Amount),
		Chain:     e.Chain,
		Action:    e.Action,
		CreatedAt: e.CreatedAt,
	}
	switch e.Kind {
	case events.KindDeposited, events.KindWithdrawn:
		resp.Agent = e.Agent.Hex()
	case events.KindBridgeIn:
		resp.Recipient = e.Recipient.Hex()
	case events.KindBridgeOut:
		resp.Agent = e.Agent.Hex()
		resp.Recipient = e.Recipient.Hex()
	}
	return resp
}
