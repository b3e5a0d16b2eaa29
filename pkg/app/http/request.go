package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/chainsafe/escrow-bridge/pkg/app/errors"
)

const maxBodySize = 1 << 20 // 1MB

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON reads a JSON body into dst, applies `default` tags and runs
// `validate` tags. Failures are returned as bad request errors.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err = json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return Validate(dst)
}

// Validate applies `default` tags to dst and runs its `validate` tags.
func Validate(dst any) error {
	if err := defaults.Set(dst); err != nil {
		return apperrors.GeneralError(err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.BadRequestError(err, "invalid field: "+verrs[0].Field())
		}
		return apperrors.BadRequestError(err, "invalid request")
	}
	return nil
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
