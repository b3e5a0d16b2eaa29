// Package http provides HTTP utilities including chi-compatible error handling
package http

import (
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/escrow-bridge/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failures by returning them.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError adapts an error-returning HandlerFunc to http.HandlerFunc.
//
//	r.Post("/v1/bridge/out", apphttp.HandleError(h.bridgeOut))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

type errorResponse struct {
	ErrMsg     string `json:"error"`
	ErrMsgCode int    `json:"code"`
}

// DefaultErrorHandler writes err as a JSON error body. ServiceErrors keep
// their message and category status; anything else becomes a 500 with a
// generic message.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		WriteJSON(w, svcErr.StatusCode(), &errorResponse{
			ErrMsg:     svcErr.Message,
			ErrMsgCode: svcErr.StatusCode(),
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, &errorResponse{
		ErrMsg:     "Unexpected Service Error",
		ErrMsgCode: http.StatusInternalServerError,
	})
}
