package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const serviceName = "EscrowService"

// logService wraps Service with logging of every call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the escrow Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Deposit(ctx context.Context, ledger common.Address, req *MovementRequest) (resp *BalanceResponse, err error) {
	defer ls.logMutation("Deposit", time.Now(), ledger, req, &resp, &err)
	return ls.svc.Deposit(ctx, ledger, req)
}

func (ls *logService) Withdraw(ctx context.Context, ledger common.Address, req *MovementRequest) (resp *BalanceResponse, err error) {
	defer ls.logMutation("Withdraw", time.Now(), ledger, req, &resp, &err)
	return ls.svc.Withdraw(ctx, ledger, req)
}

func (ls *logService) GetAllowance(ctx context.Context, ledger, token common.Address) (resp *BalanceResponse, err error) {
	defer ls.logQuery("GetAllowance", time.Now(), &err, zap.String("ledger", ledger.Hex()), zap.String("token", token.Hex()))
	return ls.svc.GetAllowance(ctx, ledger, token)
}

func (ls *logService) GetDeposit(ctx context.Context, ledger, token, agent common.Address) (resp *BalanceResponse, err error) {
	defer ls.logQuery("GetDeposit", time.Now(), &err,
		zap.String("ledger", ledger.Hex()), zap.String("token", token.Hex()), zap.String("agent", agent.Hex()))
	return ls.svc.GetDeposit(ctx, ledger, token, agent)
}

func (ls *logService) GetWithdraw(ctx context.Context, ledger, token, agent common.Address) (resp *BalanceResponse, err error) {
	defer ls.logQuery("GetWithdraw", time.Now(), &err,
		zap.String("ledger", ledger.Hex()), zap.String("token", token.Hex()), zap.String("agent", agent.Hex()))
	return ls.svc.GetWithdraw(ctx, ledger, token, agent)
}

func (ls *logService) logMutation(method string, start time.Time, ledger common.Address, req *MovementRequest, resp **BalanceResponse, err *error) {
	fields := []zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("ledger", ledger.Hex()),
		zap.String("token", req.Token),
		zap.String("agent", req.Agent),
		zap.String("amount", req.Amount),
		zap.Duration("duration", time.Since(start)),
	}

	if *err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(*err))...)
		return
	}
	ls.logger.Info(method+" completed", append(fields, zap.String("allowance", (*resp).Amount))...)
}

// logQuery logs failed reads at warn level and successful ones at debug.
func (ls *logService) logQuery(method string, start time.Time, err *error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if *err != nil {
		ls.logger.Warn(method+" failed", append(fields, zap.Error(*err))...)
		return
	}
	ls.logger.Debug(method+" completed", fields...)
}
