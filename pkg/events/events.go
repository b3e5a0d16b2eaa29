// Package events defines the append-only records emitted by the escrow ledger
// and the bridge gateway.
package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Kind identifies the type of an emitted event.
type Kind string

const (
	KindInitiated Kind = "initiated"
	KindDeposited Kind = "deposited"
	KindWithdrawn Kind = "withdrawn"
	KindBridgeIn  Kind = "bridge_in"
	KindBridgeOut Kind = "bridge_out"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInitiated, KindDeposited, KindWithdrawn, KindBridgeIn, KindBridgeOut:
		return true
	}
	return false
}

// Event is an immutable record of a single ledger or bridge movement.
// Which optional fields are set depends on Kind:
//
//	Initiated  Token, Amount (initial value)
//	Deposited  Token, Amount, Agent
//	Withdrawn  Token, Amount, Agent
//	BridgeIn   Token, Recipient, Chain (origin), Amount
//	BridgeOut  Token, Recipient, Agent, Amount, Action
type Event struct {
	ID        uuid.UUID
	Seq       int64 // assigned by the store on commit
	Emitter   common.Address
	Kind      Kind
	Token     common.Address
	Amount    *big.Int
	Agent     common.Address
	Recipient common.Address
	Chain     string
	Action    string
	CreatedAt time.Time
}

func newEvent(emitter common.Address, kind Kind, token common.Address, amount *big.Int) *Event {
	return &Event{
		ID:        uuid.New(),
		Emitter:   emitter,
		Kind:      kind,
		Token:     token,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: time.Now().UTC(),
	}
}

// Initiated records the seeding of a token allowance.
func Initiated(emitter, token common.Address, initialValue *big.Int) *Event {
	return newEvent(emitter, KindInitiated, token, initialValue)
}

// Deposited records a deposit of amount by agent.
func Deposited(emitter, token common.Address, amount *big.Int, agent common.Address) *Event {
	e := newEvent(emitter, KindDeposited, token, amount)
	e.Agent = agent
	return e
}

// Withdrawn records a withdrawal of amount by agent.
func Withdrawn(emitter, token common.Address, amount *big.Int, agent common.Address) *Event {
	e := newEvent(emitter, KindWithdrawn, token, amount)
	e.Agent = agent
	return e
}

// BridgeIn records an inbound transfer notification.
func BridgeIn(emitter, token, recipient common.Address, originChain string, amount *big.Int) *Event {
	e := newEvent(emitter, KindBridgeIn, token, amount)
	e.Recipient = recipient
	e.Chain = originChain
	return e
}

// BridgeOut records a completed outbound transfer.
func BridgeOut(emitter, token, recipient, agent common.Address, amount *big.Int, action string) *Event {
	e := newEvent(emitter, KindBridgeOut, token, amount)
	e.Recipient = recipient
	e.Agent = agent
	e.Action = action
	return e
}

// Filter narrows an event listing. Zero values match everything.
type Filter struct {
	Emitter  *common.Address
	Kind     Kind
	Token    *common.Address
	AfterSeq int64
	Limit    int
}

// Matches reports whether e passes the filter, ignoring Limit.
func (f Filter) Matches(e *Event) bool {
	if f.Emitter != nil && e.Emitter != *f.Emitter {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Token != nil && e.Token != *f.Token {
		return false
	}
	return e.Seq > f.AfterSeq
}
