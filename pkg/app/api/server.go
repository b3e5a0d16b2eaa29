// Package api implements app.Runner for the escrow-bridge server process.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/escrow-bridge/pkg/app/http"
	"github.com/chainsafe/escrow-bridge/pkg/auth"
	"github.com/chainsafe/escrow-bridge/pkg/bridge"
	bridgeservice "github.com/chainsafe/escrow-bridge/pkg/bridge/service"
	"github.com/chainsafe/escrow-bridge/pkg/config"
	"github.com/chainsafe/escrow-bridge/pkg/escrow"
	escrowservice "github.com/chainsafe/escrow-bridge/pkg/escrow/service"
	"github.com/chainsafe/escrow-bridge/pkg/ethereum"
	"github.com/chainsafe/escrow-bridge/pkg/host"
	"github.com/chainsafe/escrow-bridge/pkg/pgutil"
	"github.com/chainsafe/escrow-bridge/pkg/store"
	"github.com/chainsafe/escrow-bridge/pkg/store/memory"
	"github.com/chainsafe/escrow-bridge/pkg/store/pg"
)

// Server holds cfg to init the escrow-bridge server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new escrow-bridge server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting escrow-bridge server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Driver),
		zap.String("host_mode", cfg.Host.Mode),
	)

	router, cleanup, err := s.build(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// build wires store, ledgers, host and gateway into a router. cleanup
// releases any connections opened along the way.
func (s *Server) build(ctx context.Context, logger *zap.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	st, closeStore, err := s.openStore(logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	ledgers, err := s.openLedgers(ctx, st, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	h, closeHost, err := s.openHost(ledgers, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeHost)

	gateway := bridge.NewGateway(s.cfg.Bridge.GatewayAddress(), h, st, logger)
	if reg, ok := h.(*host.Registry); ok {
		reg.Register(gateway.Address(), gateway)
	}
	logger.Info("Bridge gateway ready", zap.String("address", gateway.Address().Hex()))

	ledgerViews := make([]escrowservice.Ledger, 0, len(ledgers))
	for _, l := range ledgers {
		ledgerViews = append(ledgerViews, l)
	}
	escrowSvc := escrowservice.NewLog(escrowservice.NewService(ledgerViews...), logger)
	bridgeSvc := bridgeservice.NewLog(bridgeservice.NewService(gateway, st), logger)

	return s.setupRouter(escrowSvc, bridgeSvc, logger), cleanup, nil
}

func (s *Server) openStore(logger *zap.Logger) (store.Store, func(), error) {
	switch s.cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := pgutil.ConnectDB(&s.cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("host", s.cfg.Database.Host),
			zap.String("database", s.cfg.Database.Database),
		)
		return pg.NewStore(db), func() { _ = db.Close() }, nil
	default:
		logger.Warn("Using in-memory store; state is lost on restart")
		return memory.New(), func() {}, nil
	}
}

// openLedgers creates the configured ledgers and seeds their genesis
// tokens. Tokens already present in a persistent store are left as they are.
func (s *Server) openLedgers(ctx context.Context, st store.Store, logger *zap.Logger) ([]*escrow.Ledger, error) {
	ledgers := make([]*escrow.Ledger, 0, len(s.cfg.Escrow.Ledgers))
	for _, lc := range s.cfg.Escrow.Ledgers {
		l := escrow.NewLedger(common.HexToAddress(lc.Address), st)

		for _, g := range lc.Genesis {
			amount, err := g.Amount()
			if err != nil {
				return nil, err
			}
			token := common.HexToAddress(g.Token)

			err = l.Initialize(ctx, token, amount)
			switch {
			case errors.Is(err, escrow.ErrAlreadyInitialized):
				logger.Debug("Genesis token already initialized",
					zap.String("ledger", l.Address().Hex()),
					zap.String("token", token.Hex()),
				)
			case err != nil:
				return nil, fmt.Errorf("initialize ledger %s token %s: %w", l.Address().Hex(), token.Hex(), err)
			default:
				logger.Info("Genesis token initialized",
					zap.String("ledger", l.Address().Hex()),
					zap.String("token", token.Hex()),
					zap.String("initial_value", amount.String()),
				)
			}
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func (s *Server) openHost(ledgers []*escrow.Ledger, logger *zap.Logger) (bridge.Host, func(), error) {
	switch s.cfg.Host.Mode {
	case config.HostEthereum:
		caller, client, err := ethereum.Dial(&s.cfg.Ethereum, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create ethereum host: %w", err)
		}
		return caller, client.Close, nil
	default:
		reg := host.NewRegistry()
		for _, l := range ledgers {
			reg.Register(l.Address(), l)
		}
		return reg, func() {}, nil
	}
}

func (s *Server) setupRouter(
	escrowSvc escrowservice.Service,
	bridgeSvc bridgeservice.Service,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle(s.cfg.Monitoring.MetricsPath, promhttp.Handler())
	}

	var guard []func(http.Handler) http.Handler
	if s.cfg.Auth.Enabled {
		validator := auth.NewJWTValidator(s.cfg.Auth.JWKSURL, s.cfg.Auth.Issuer, s.cfg.Auth.Audience)
		guard = append(guard, auth.Middleware(validator, logger))
		logger.Info("JWT auth enabled for mutating routes", zap.String("jwks_url", s.cfg.Auth.JWKSURL))
	}

	escrowservice.RegisterRoutes(r, escrowSvc, logger, guard...)
	bridgeservice.RegisterRoutes(r, bridgeSvc, logger, guard...)

	return r
}
