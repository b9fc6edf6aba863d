package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeCaptchaInvalid, http.StatusBadRequest},
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeUserDisabled, http.StatusForbidden},
		{ErrCodeUserAlreadyExists, http.StatusConflict},
		{ErrCodeUserLocked, http.StatusTooManyRequests},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestUserLockedCarriesMinutes(t *testing.T) {
	err := fmt.Errorf("login: %w", UserLocked(12))

	assert.True(t, IsCode(err, ErrCodeUserLocked))
	assert.Equal(t, int64(12), GetDetails(err)["lockout_minutes"])
	assert.NotContains(t, GetDetails(err), "remaining_attempts")
}

func TestToResponse(t *testing.T) {
	status, body := ToResponse(InvalidCredentials())
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ErrCodeInvalidCredentials, body.Code)

	status, body = ToResponse(errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternal, body.Code)
	assert.Equal(t, "internal error", body.Message)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := InternalWrap(cause, "store failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeInternal, GetCode(err))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
}
