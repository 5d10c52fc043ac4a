// Package remote is the HTTP client for the remote sync endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/pkg/protocol"
	"github.com/fruitsalade/projectfs/pkg/retry"
)

// Client pushes project trees to the remote endpoint.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	tokens      TokenSource
	log         *zap.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	Tokens      TokenSource
}

// New creates a new client. A zero RetryConfig makes a single attempt.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts <= 0 {
		cfg.RetryConfig = retry.Once()
	}
	if cfg.Tokens == nil {
		cfg.Tokens = StaticToken("")
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		tokens:      cfg.Tokens,
		log:         logging.Named("remote"),
	}
}

// BaseURL returns the endpoint base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) applyAuth(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// Push sends the whole tree. Any 2xx status is success; the response body is
// decoded when possible but never required.
func (c *Client) Push(ctx context.Context, body *protocol.SyncRequest) (*protocol.SyncResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "encode sync request")
	}

	return retry.DoWithResult(ctx, c.retryConfig, func() (*protocol.SyncResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+protocol.SyncPath, bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "build sync request")
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.applyAuth(ctx, req); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, transportError(ctx, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, statusError(resp)
		}

		var out protocol.SyncResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
			c.log.Debug("ignoring undecodable sync response", zap.Error(err))
		}
		if out.ProjectID == "" {
			out.ProjectID = body.ProjectID
		}
		return &out, nil
	})
}

// Ping checks that the endpoint answers its health check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+protocol.HealthPath, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "build health request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(err, errors.CodeTimeout, "sync request timed out")
	}
	return errors.Wrap(err, errors.CodeNetwork, "sync request failed")
}

func statusError(resp *http.Response) error {
	var apiErr protocol.ErrorResponse
	msg := resp.Status
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		msg = resp.Status + ": " + apiErr.Error
	}

	var code errors.ErrorCode
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		code = errors.CodeUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		code = errors.CodeRateLimit
	case resp.StatusCode >= 500:
		code = errors.CodeUnavailable
	default:
		code = errors.CodeInvalidInput
	}
	return errors.WithContext(errors.Newf(code, "server returned %s", msg), "status", resp.StatusCode)
}
