package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const serviceName = "BridgeService"

type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the bridge Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// BridgeIn wraps the service method with logging
func (ls *logService) BridgeIn(ctx context.Context, req *BridgeInRequest) (resp *EventResponse, err error) {
	start := time.Now()
	ls.logger.Info("BridgeIn started",
		zap.String("service", serviceName),
		zap.String("method", "BridgeIn"),
		zap.String("token", req.Token),
		zap.String("origin_chain", req.OriginChain),
		zap.String("amount", req.Amount),
	)

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Error("BridgeIn failed",
				zap.String("service", serviceName),
				zap.String("method", "BridgeIn"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("BridgeIn completed",
			zap.String("service", serviceName),
			zap.String("method", "BridgeIn"),
			zap.String("event_id", resp.ID),
			zap.Int64("seq", resp.Seq),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.BridgeIn(ctx, req)
}

// BridgeOut wraps the service method with logging
func (ls *logService) BridgeOut(ctx context.Context, req *BridgeOutRequest) (resp *EventResponse, err error) {
	start := time.Now()
	ls.logger.Info("BridgeOut started",
		zap.String("service", serviceName),
		zap.String("method", "BridgeOut"),
		zap.String("token", req.Token),
		zap.String("recipient", req.Recipient),
		zap.String("agent", req.Agent),
		zap.String("amount", req.Amount),
		zap.String("action", req.Action),
	)

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Error("BridgeOut failed",
				zap.String("service", serviceName),
				zap.String("method", "BridgeOut"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Info("BridgeOut completed",
			zap.String("service", serviceName),
			zap.String("method", "BridgeOut"),
			zap.String("event_id", resp.ID),
			zap.Int64("seq", resp.Seq),
			zap.String("agent", resp.Agent),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.BridgeOut(ctx, req)
}

// ListEvents wraps the service method with logging
func (ls *logService) ListEvents(ctx context.Context, query *EventQuery) (resp *EventsResponse, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.logger.Warn("ListEvents failed",
				zap.String("service", serviceName),
				zap.String("method", "ListEvents"),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("ListEvents completed",
			zap.String("service", serviceName),
			zap.String("method", "ListEvents"),
			zap.Int("count", len(resp.Events)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	return ls.svc.ListEvents(ctx, query)
}
