package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, StaticKey("secret-key"), 5*time.Second, nil)
}

func TestGenerate_SendsBearerAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/artisan/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red fox", req.Prompt)

		_, _ = w.Write([]byte(`{"success":true,"image":"aGVsbG8=","credits_used":1,"credits_remaining":9}`))
	})

	out, err := c.Generate(context.Background(), GenerateRequest{Prompt: "a red fox"})
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", out.Image)
	assert.Equal(t, 9, out.CreditsRemaining)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		code   apperr.Code
		http   int
	}{
		{http.StatusBadRequest, apperr.CodeValidation, http.StatusBadRequest},
		{http.StatusUnauthorized, apperr.CodeAuth, http.StatusUnauthorized},
		{http.StatusPaymentRequired, apperr.CodeCredit, http.StatusPaymentRequired},
		{http.StatusForbidden, apperr.CodeAuth, http.StatusForbidden},
		{http.StatusTooManyRequests, apperr.CodeRateLimit, http.StatusTooManyRequests},
		{http.StatusInternalServerError, apperr.CodeServer, http.StatusBadGateway},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"remote said no"}`))
		})
		_, err := c.Credits(context.Background())
		require.Error(t, err)

		ae := apperr.From(err)
		assert.Equal(t, tc.code, ae.Code, "status %d", tc.status)
		assert.Equal(t, tc.http, ae.StatusCode, "status %d", tc.status)
		assert.Equal(t, "remote said no", ae.Details["remote_message"])
	}
}

func TestRateLimit_CarriesResetTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.AltTextConfig(context.Background())
	ae := apperr.From(err)
	assert.Equal(t, "1700000000", ae.Details["reset_time"])
}

func TestSuccessFalseIsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"model overloaded"}`))
	})
	_, err := c.Inspire(context.Background(), InspireRequest{Image: "x"})
	ae := apperr.From(err)
	assert.Equal(t, apperr.CodeServer, ae.Code)
	assert.Equal(t, "model overloaded", ae.Message)
}

func TestMissingKeyIsAuthError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", StaticKey(""), time.Second, nil)
	_, err := c.Credits(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
}

func TestBatchMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req AltTextBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "batch", req.Mode)
		assert.Len(t, req.Images, 2)
		_, _ = w.Write([]byte(`{"success":true,"results":[{"id":1,"success":true,"alt_text":"a"},{"id":2,"success":false}]}`))
	})
	out, err := c.GenerateAltTextBatch(context.Background(), AltTextBatchRequest{
		Images: []BatchImage{{ID: 1}, {ID: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
}

func TestWithAPIKey_DoesNotMutateOriginal(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"available_credits":3}`))
	})
	_, err := c.WithAPIKey("other").Credits(context.Background())
	require.NoError(t, err)
	_, err = c.Credits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer other", "Bearer secret-key"}, got)
}
