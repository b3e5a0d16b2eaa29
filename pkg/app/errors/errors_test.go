package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name     string
		err      error
		cat      Category
		wantCode int
	}{
		{"bad request", BadRequestError(cause, "bad"), CategoryDataError, http.StatusBadRequest},
		{"unauthorized", UnAuthorizedError(cause, "who"), CategoryUnauthorized, http.StatusUnauthorized},
		{"not found", ResourceNotFoundError(cause, "gone"), CategoryResourceNotFound, http.StatusNotFound},
		{"conflict", ConflictError(cause, "twice"), CategoryDataConflict, http.StatusConflict},
		{"dependency", DependencyError(cause, "remote"), CategoryDependencyFailure, http.StatusBadGateway},
		{"general", GeneralError(cause), CategoryGeneralError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Is(tt.err, tt.cat))
			assert.ErrorIs(t, tt.err, cause)

			var svcErr *ServiceError
			require.ErrorAs(t, tt.err, &svcErr)
			assert.Equal(t, tt.wantCode, svcErr.StatusCode())
			assert.Equal(t, tt.cat.String(), svcErr.Category.String())
		})
	}
}

func TestNilCauseKeepsMessage(t *testing.T) {
	err := BadRequestError(nil, "invalid amount")
	assert.Equal(t, "bad request: invalid amount", err.Error())

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "invalid amount", svcErr.Message)
}

func TestIs_WrappedAndForeign(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ConflictError(nil, "exists"))
	assert.True(t, Is(wrapped, CategoryDataConflict))
	assert.False(t, Is(wrapped, CategoryDataError))
	assert.False(t, Is(errors.New("plain"), CategoryGeneralError))
}
