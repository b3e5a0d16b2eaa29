package service

import (
	"net/http"
	"strconv"

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

// RegisterRoutes registers the bridge and event endpoints on r. Bridge
// mutations are wrapped with guard.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger, guard ...func(http.Handler) http.Handler) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.With(guard...).Post("/v1/bridge/in", apphttp.HandleError(h.bridgeIn))
	r.With(guard...).Post("/v1/bridge/out", apphttp.HandleError(h.bridgeOut))
	r.Get("/v1/events", apphttp.HandleError(h.listEvents))
}

func (h *HTTP) bridgeIn(w http.ResponseWriter, r *http.Request) error {
	var req BridgeInRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}

	resp, err := h.service.BridgeIn(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) bridgeOut(w http.ResponseWriter, r *http.Request) error {
	var req BridgeOutRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}

	resp, err := h.service.BridgeOut(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) listEvents(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	query := EventQuery{
		Emitter: q.Get("emitter"),
		Kind:    q.Get("kind"),
		Token:   q.Get("token"),
	}

	var err error
	if v := q.Get("after"); v != "" {
		if query.After, err = strconv.ParseInt(v, 10, 64); err != nil {
			return apperrors.BadRequestError(err, "invalid after")
		}
	}
	if v := q.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil {
			return apperrors.BadRequestError(err, "invalid limit")
		}
	}
	if err = apphttp.Validate(&query); err != nil {
		return err
	}

	resp, err := h.service.ListEvents(r.Context(), &query)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}
