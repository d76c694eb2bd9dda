package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
)

// KeySource resolves the API key at call time so a key saved from the settings
// screen takes effect without a restart.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) { return string(k), nil }

type Client struct {
	BaseURL string
	Keys    KeySource
	Client  *http.Client
	Logger  *slog.Logger
}

func NewClient(baseURL string, keys KeySource, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Keys:    keys,
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// WithAPIKey returns a copy of c bound to key, used to validate a key before it is saved.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.Keys = StaticKey(key)
	return &cp
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// maxResponseBytes bounds decoded bodies; image payloads are base64 and can be large.
const maxResponseBytes = 64 << 20

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.Client == nil {
		return apperr.Internal(errors.New("remote: http client is nil"), msgServer)
	}
	if c.Keys == nil {
		return apperr.Auth(msgNoKey, http.StatusUnauthorized)
	}
	key, err := c.Keys.APIKey(ctx)
	if err != nil {
		return apperr.Internal(err, "Failed to load API key.")
	}
	if strings.TrimSpace(key) == "" {
		return apperr.Auth(msgNoKey, http.StatusUnauthorized)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal(err, "Failed to encode request.")
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/%s", c.BaseURL, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperr.Internal(err, "Failed to build request.")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+key)

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		c.Logger.Warn("remote request failed", "method", method, "path", path, "err", err)
		return apperr.Server(err, msgNetwork)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Server(err, msgNetwork)
	}

	c.Logger.Debug("remote request", "method", method, "path", path,
		"status", resp.StatusCode, "cost", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, resp.Header, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.Server(err, "Invalid response from the AI service.")
	}
	if env.Success != nil && !*env.Success {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = strings.TrimSpace(env.Message)
		}
		if msg == "" {
			msg = msgServer
		}
		return apperr.Server(nil, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Server(err, "Invalid response from the AI service.")
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.do(ctx, http.MethodPost, "/artisan/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Edit(ctx context.Context, req EditRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.do(ctx, http.MethodPost, "/artisan/edit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Inspire(ctx context.Context, req InspireRequest) (*InspireResponse, error) {
	var out InspireResponse
	if err := c.do(ctx, http.MethodPost, "/artisan/inspire", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Convert(ctx context.Context, req ConvertRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.do(ctx, http.MethodPost, "/artisan/convert", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Credits(ctx context.Context) (*CreditsResponse, error) {
	var out CreditsResponse
	if err := c.do(ctx, http.MethodGet, "/artisan/credits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateAltText(ctx context.Context, req AltTextRequest) (*AltTextResponse, error) {
	req.Mode = "single"
	var out AltTextResponse
	if err := c.do(ctx, http.MethodPost, "/alttext/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateAltTextBatch sends a whole batch in one call; per-image outcomes come back in Results.
func (c *Client) GenerateAltTextBatch(ctx context.Context, req AltTextBatchRequest) (*AltTextBatchResponse, error) {
	req.Mode = "batch"
	var out AltTextBatchResponse
	if err := c.do(ctx, http.MethodPost, "/alttext/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AltTextConfig(ctx context.Context) (*AltTextConfigResponse, error) {
	var out AltTextConfigResponse
	if err := c.do(ctx, http.MethodGet, "/alttext/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
