package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom_PassesThroughWrappedAppError(t *testing.T) {
	base := Credit("Insufficient credits")
	wrapped := fmt.Errorf("bulk: %w", base)

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.True(t, Is(wrapped, CodeCredit))
	assert.False(t, Is(wrapped, CodeAuth))
}

func TestFrom_UnknownErrorIsInternal(t *testing.T) {
	got := From(errors.New("boom"))
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	assert.Nil(t, From(nil))
}

func TestAuth_OnlyForbiddenKeeps403(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, Auth("x", http.StatusForbidden).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, Auth("x", http.StatusTeapot).StatusCode)
}

func TestWithDetails(t *testing.T) {
	e := RateLimit("slow down").WithDetails("reset_time", "60")
	assert.Equal(t, "60", e.Details["reset_time"])
	assert.Equal(t, "RATE_LIMIT_ERROR: slow down", e.Error())
}
