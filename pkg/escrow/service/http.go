package service

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/escrow-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/escrow-bridge/pkg/app/http"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the escrow endpoints on r. Deposit and withdraw are
// wrapped with guard, typically the JWT middleware when auth is enabled.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger, guard ...func(http.Handler) http.Handler) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Route("/v1/escrow/{ledger}", func(r chi.Router) {
		r.With(guard...).Post("/deposit", apphttp.HandleError(h.deposit))
		r.With(guard...).Post("/withdraw", apphttp.HandleError(h.withdraw))
		r.Get("/allowance/{token}", apphttp.HandleError(h.allowance))
		r.Get("/deposits/{token}/{agent}", apphttp.HandleError(h.depositRecord))
		r.Get("/withdrawals/{token}/{agent}", apphttp.HandleError(h.withdrawRecord))
	})
}

func (h *HTTP) deposit(w http.ResponseWriter, r *http.Request) error {
	ledger, req, err := h.movement(r)
	if err != nil {
		return err
	}
	resp, err := h.service.Deposit(r.Context(), ledger, req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) withdraw(w http.ResponseWriter, r *http.Request) error {
	ledger, req, err := h.movement(r)
	if err != nil {
		return err
	}
	resp, err := h.service.Withdraw(r.Context(), ledger, req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) movement(r *http.Request) (common.Address, *MovementRequest, error) {
	ledger, err := pathAddress(r, "ledger")
	if err != nil {
		return common.Address{}, nil, err
	}
	var req MovementRequest
	if err = apphttp.DecodeJSON(r, &req); err != nil {
		return common.Address{}, nil, err
	}
	return ledger, &req, nil
}

func (h *HTTP) allowance(w http.ResponseWriter, r *http.Request) error {
	addrs, err := pathAddresses(r, "ledger", "token")
	if err != nil {
		return err
	}
	resp, err := h.service.GetAllowance(r.Context(), addrs[0], addrs[1])
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) depositRecord(w http.ResponseWriter, r *http.Request) error {
	addrs, err := pathAddresses(r, "ledger", "token", "agent")
	if err != nil {
		return err
	}
	resp, err := h.service.GetDeposit(r.Context(), addrs[0], addrs[1], addrs[2])
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) withdrawRecord(w http.ResponseWriter, r *http.Request) error {
	addrs, err := pathAddresses(r, "ledger", "token", "agent")
	if err != nil {
		return err
	}
	resp, err := h.service.GetWithdraw(r.Context(), addrs[0], addrs[1], addrs[2])
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func pathAddress(r *http.Request, param string) (common.Address, error) {
	v := chi.URLParam(r, param)
	if !common.IsHexAddress(v) {
		return common.Address{}, apperrors.BadRequestError(nil, "invalid "+param+" address")
	}
	return common.HexToAddress(v), nil
}

func pathAddresses(r *http.Request, params ...string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(params))
	for _, p := range params {
		a, err := pathAddress(r, p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
