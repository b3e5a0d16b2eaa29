package pg

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/chainsafe/escrow-bridge/pkg/events"
)

// AllowanceDao maps to the 'allowances' table.
type AllowanceDao struct {
	bun.BaseModel `bun:"table:allowances,alias:a"`
	Ledger        string    `bun:"ledger,pk,type:varchar(42)"`
	Token         string    `bun:"token,pk,type:varchar(42)"`
	Balance       string    `bun:"balance,notnull,type:numeric(78,0)"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// AgentRecordDao maps to the 'agent_records' table. Kind separates deposit
// records from withdraw records.
type AgentRecordDao struct {
	bun.BaseModel `bun:"table:agent_records,alias:r"`
	Kind          string    `bun:"kind,pk,type:varchar(16)"`
	Ledger        string    `bun:"ledger,pk,type:varchar(42)"`
	Agent         string    `bun:"agent,pk,type:varchar(42)"`
	Token         string    `bun:"token,pk,type:varchar(42)"`
	Balance       string    `bun:"balance,notnull,type:numeric(78,0)"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// EventDao maps to the 'escrow_events' table.
type EventDao struct {
	bun.BaseModel `bun:"table:escrow_events,alias:e"`
	Seq           int64     `bun:"seq,pk,autoincrement"`
	EventID       uuid.UUID `bun:"event_id,unique,notnull,type:uuid"`
	Emitter       string    `bun:"emitter,notnull,type:varchar(42)"`
	Kind          string    `bun:"kind,notnull,type:varchar(20)"`
	Token         string    `bun:"token,notnull,type:varchar(42)"`
	Amount        string    `bun:"amount,notnull,type:numeric(78,0)"`
	Agent         *string   `bun:"agent,type:varchar(42)"`
	Recipient     *string   `bun:"recipient,type:varchar(42)"`
	Chain         *string   `bun:"chain,type:varchar(255)"`
	Action        *string   `bun:"action,type:varchar(16)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func addr(a common.Address) string {
	return a.Hex()
}

func optAddr(a common.Address) *string {
	if a == (common.Address{}) {
		return nil
	}
	s := a.Hex()
	return &s
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseBalance(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored balance %q", s)
	}
	return v, nil
}

func toEventDao(e *events.Event) *EventDao {
	return &EventDao{
		EventID:   e.ID,
		Emitter:   addr(e.Emitter),
		Kind:      string(e.Kind),
		Token:     addr(e.Token),
		Amount:    e.Amount.String(),
		Agent:     optAddr(e.Agent),
		Recipient: optAddr(e.Recipient),
		Chain:     optString(e.Chain),
		Action:    optString(e.Action),
		CreatedAt: e.CreatedAt,
	}
}

func toEvent(dao *EventDao) (*events.Event, error) {
	amount, err := parseBalance(dao.Amount)
	if err != nil {
		return nil, err
	}
	e := &events.Event{
		ID:        dao.EventID,
		Seq:       dao.Seq,
		Emitter:   common.HexToAddress(dao.Emitter),
		Kind:      events.Kind(dao.Kind),
		Token:     common.HexToAddress(dao.Token),
		Amount:    amount,
		CreatedAt: dao.CreatedAt,
	}
	if dao.Agent != nil {
		e.Agent = common.HexToAddress(*dao.Agent)
	}
	if dao.Recipient != nil {
		e.Recipient = common.HexToAddress(*dao.Recipient)
	}
	if dao.Chain != nil {
		e.Chain = *dao.Chain
	}
	if dao.Action != nil {
		e.Action = *dao.Action
	}
	return e, nil
}
