package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidArgument, http.StatusBadRequest},
		{ErrCodePolicyViolation, http.StatusUnprocessableEntity},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAPIError(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable(cause)

	assert.Equal(t, "[STORE_UNAVAILABLE] event store unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[CONFLICT] taken", Conflict("taken").Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeStoreUnavailable))
	assert.False(t, IsCode(wrapped, ErrCodeConflict))
	assert.Equal(t, ErrCodeStoreUnavailable, GetCodeFromError(wrapped, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCodeFromError(cause, ErrCodeInternal))

	withCtx := InvalidArgumentf("bad %s", "date").WithContext("field", "date")
	assert.Equal(t, "bad date", withCtx.Message)
	assert.Equal(t, "date", withCtx.Context["field"])
}
