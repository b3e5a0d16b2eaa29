package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/escrow-bridge/internal/metrics"
	apperrors "github.com/chainsafe/escrow-bridge/pkg/app/errors"
	"github.com/chainsafe/escrow-bridge/pkg/escrow"
)

var (
	ErrUnknownLedger  = errors.New("unknown ledger")
	ErrRecordNotFound = errors.New("record not found")
)

// Ledger is the escrow ledger surface used by the service.
type Ledger interface {
	Address() common.Address
	Deposit(ctx context.Context, token escrow.Token, amount *big.Int, depositor escrow.Agent) (*big.Int, error)
	Withdraw(ctx context.Context, token escrow.Token, amount *big.Int, withdrawer escrow.Agent) (*big.Int, error)
	GetAllowance(ctx context.Context, token escrow.Token) (*big.Int, bool, error)
	GetDeposit(ctx context.Context, token escrow.Token, agent escrow.Agent) (*big.Int, bool, error)
	GetWithdraw(ctx context.Context, token escrow.Token, agent escrow.Agent) (*big.Int, bool, error)
}

// Service defines the escrow ledger operations exposed over HTTP.
type Service interface {
	Deposit(ctx context.Context, ledger common.Address, req *MovementRequest) (*BalanceResponse, error)
	Withdraw(ctx context.Context, ledger common.Address, req *MovementRequest) (*BalanceResponse, error)
	GetAllowance(ctx context.Context, ledger, token common.Address) (*BalanceResponse, error)
	GetDeposit(ctx context.Context, ledger, token, agent common.Address) (*BalanceResponse, error)
	GetWithdraw(ctx context.Context, ledger, token, agent common.Address) (*BalanceResponse, error)
}

type escrowService struct {
	ledgers map[common.Address]Ledger
}

// NewService creates a service over the given ledgers, keyed by address.
func NewService(ledgers ...Ledger) Service {
	m := make(map[common.Address]Ledger, len(ledgers))
	for _, l := range ledgers {
		m[l.Address()] = l
	}
	return &escrowService{ledgers: m}
}

func (s *escrowService) Deposit(ctx context.Context, ledger common.Address, req *MovementRequest) (*BalanceResponse, error) {
	return s.move("deposit", ledger, req, func(l Ledger, token common.Address, amount *big.Int, agent common.Address) (*big.Int, error) {
		return l.Deposit(ctx, token, amount, agent)
	})
}

func (s *escrowService) Withdraw(ctx context.Context, ledger common.Address, req *MovementRequest) (*BalanceResponse, error) {
	return s.move("withdraw", ledger, req, func(l Ledger, token common.Address, amount *big.Int, agent common.Address) (*big.Int, error) {
		return l.Withdraw(ctx, token, amount, agent)
	})
}

type movement func(l Ledger, token common.Address, amount *big.Int, agent common.Address) (*big.Int, error)

// move runs a deposit or withdraw and answers with the allowance it committed.
func (s *escrowService) move(op string, ledger common.Address, req *MovementRequest, fn movement) (*BalanceResponse, error) {
	l, err := s.ledger(ledger)
	if err != nil {
		return nil, err
	}

	amount, err := escrow.ParseAmount(req.Amount)
	if err != nil {
		return nil, mapError(err)
	}
	token := common.HexToAddress(req.Token)
	agent := common.HexToAddress(req.Agent)

	allowance, err := fn(l, token, amount, agent)
	if err != nil {
		metrics.EscrowOperationsTotal.WithLabelValues(op, "failed").Inc()
		return nil, mapError(err)
	}
	metrics.EscrowOperationsTotal.WithLabelValues(op, "success").Inc()
	observeAllowance(ledger, token, allowance)

	return &BalanceResponse{
		Ledger: ledger.Hex(),
		Token:  token.Hex(),
		Agent:  agent.Hex(),
		Amount: escrow.FormatAmount(allowance),
	}, nil
}

func (s *escrowService) GetAllowance(ctx context.Context, ledger, token common.Address) (*BalanceResponse, error) {
	l, err := s.ledger(ledger)
	if err != nil {
		return nil, err
	}

	v, ok, err := l.GetAllowance(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	if !ok {
		return nil, apperrors.ResourceNotFoundError(escrow.ErrUnknownToken, "token not initialized")
	}
	observeAllowance(ledger, token, v)

	return &BalanceResponse{
		Ledger: ledger.Hex(),
		Token:  token.Hex(),
		Amount: escrow.FormatAmount(v),
	}, nil
}

func (s *escrowService) GetDeposit(ctx context.Context, ledger, token, agent common.Address) (*BalanceResponse, error) {
	return s.record(ctx, ledger, token, agent, Ledger.GetDeposit)
}

func (s *escrowService) GetWithdraw(ctx context.Context, ledger, token, agent common.Address) (*BalanceResponse, error) {
	return s.record(ctx, ledger, token, agent, Ledger.GetWithdraw)
}

type recordGetter func(l Ledger, ctx context.Context, token escrow.Token, agent escrow.Agent) (*big.Int, bool, error)

func (s *escrowService) record(ctx context.Context, ledger, token, agent common.Address, get recordGetter) (*BalanceResponse, error) {
	l, err := s.ledger(ledger)
	if err != nil {
		return nil, err
	}

	v, ok, err := get(l, ctx, token, agent)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if !ok {
		return nil, apperrors.ResourceNotFoundError(ErrRecordNotFound, "record not found")
	}

	return &BalanceResponse{
		Ledger: ledger.Hex(),
		Token:  token.Hex(),
		Agent:  agent.Hex(),
		Amount: escrow.FormatAmount(v),
	}, nil
}

func (s *escrowService) ledger(address common.Address) (Ledger, error) {
	l, ok := s.ledgers[address]
	if !ok {
		return nil, apperrors.ResourceNotFoundError(ErrUnknownLedger, "unknown ledger")
	}
	return l, nil
}

// mapError converts ledger failures to service errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, escrow.ErrUnknownToken):
		return apperrors.ResourceNotFoundError(err, "token not initialized")
	case errors.Is(err, escrow.ErrInsufficientAllowance):
		return apperrors.BadRequestError(err, "insufficient allowance")
	case errors.Is(err, escrow.ErrInvalidAmount):
		return apperrors.BadRequestError(err, "invalid amount")
	case errors.Is(err, escrow.ErrAllowanceOverflow):
		return apperrors.BadRequestError(err, "allowance overflow")
	case errors.Is(err, escrow.ErrAlreadyInitialized):
		return apperrors.ConflictError(err, "token already initialized")
	default:
		return err
	}
}

func observeAllowance(ledger, token common.Address, v *big.Int) {
	f, _ := new(big.Float).SetInt(v).Float64()
	metrics.EscrowAllowance.WithLabelValues(ledger.Hex(), token.Hex()).Set(f)
}
