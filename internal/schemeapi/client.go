package schemeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"maitri/internal/domain"
	"maitri/internal/proxy"
)

var (
	// ErrMalformedPayload marks a 2xx response whose body does not match the contract.
	ErrMalformedPayload = errors.New("malformed service payload")
	// ErrSchemeNotFound is returned by GetScheme for an unknown id.
	ErrSchemeNotFound = errors.New("scheme not found")
)

// Config controls how the client reaches the scheme service.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	SOCKSProxy string
	CacheDir   string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the remote scheme service over HTTP. It implements
// ports.SchemeService, ports.AudioFetcher and ports.SchemeCatalog.
type Client struct {
	base     *url.URL
	http     *http.Client
	cacheDir string
	log      *slog.Logger

	now          func() time.Time
	newRequestID func() string
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("scheme service base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid scheme service base URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme service URL scheme %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient, err = proxy.NewHTTPClient(cfg.SOCKSProxy, cfg.Timeout)
		if err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:         base,
		http:         httpClient,
		cacheDir:     cfg.CacheDir,
		log:          logger,
		now:          time.Now,
		newRequestID: uuid.NewString,
	}, nil
}

// BaseURL returns a copy of the service base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	return u.String()
}

// send issues the request and returns the response only when the status is 2xx.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	requestID := c.newRequestID()
	req.Header.Set("X-Request-ID", requestID)

	started := c.now()
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		c.log.Debug("service request failed", "method", req.Method, "url", req.URL.String(), "request_id", requestID, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrNetworkOrService, req.Method, req.URL.Path, err)
	}
	c.log.Debug("service request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Detail: strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s %s: status %d", domain.ErrNetworkOrService, e.Method, e.Path, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return domain.ErrNetworkOrService
}

func isStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(ctx, req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", domain.ErrNetworkOrService, ErrMalformedPayload, fmt.Sprintf(format, args...))
}
