// Package restclient talks to the backend record services: authenticated
// list, update, and delete calls with retry, backoff, and a single-flight
// token refresh on authentication failures.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/config"
	"github.com/saborverde/opsboard/internal/observability"
	"github.com/saborverde/opsboard/model"
)

// Client issues requests against one backend service.
type Client struct {
	cfg     config.ServiceConfig
	client  *http.Client
	tokens  TokenSource
	breaker *breaker
	logger  *zap.Logger
}

// New creates a Client for the given service configuration.
func New(cfg config.ServiceConfig, tokens TokenSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var br *breaker
	if cfg.Breaker.FailureThreshold > 0 {
		br = newBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown)
	}
	return &Client{
		cfg:     cfg,
		breaker: br,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		tokens: tokens,
		logger: logger,
	}
}

// ListResult is one page of a list response.
type ListResult struct {
	Rows  []model.Record
	Total int
}

// FetchList requests one page of records. pageIndex is zero-based; the wire
// parameter is rebased per the service's pagination config. The response body
// is `{count, <plural>: [...]}`.
func (c *Client) FetchList(ctx context.Context, path, plural string, pageIndex, pageSize int) (ListResult, error) {
	p := c.cfg.Pagination
	pageParam := p.PageParam
	if pageParam == "" {
		pageParam = "page"
	}
	sizeParam := p.SizeParam
	if sizeParam == "" {
		sizeParam = "page_size"
	}

	params := url.Values{}
	params.Set(pageParam, strconv.Itoa(pageIndex+p.PageBase))
	params.Set(sizeParam, strconv.Itoa(pageSize))

	status, body, err := c.do(ctx, http.MethodGet, path+"?"+params.Encode(), nil)
	if err != nil {
		return ListResult{}, err
	}
	if status != http.StatusOK {
		return ListResult{}, statusError(status, body)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ListResult{}, fmt.Errorf("restclient: parse list response: %w", err)
	}

	var result ListResult
	if raw, ok := envelope["count"]; ok {
		if err := json.Unmarshal(raw, &result.Total); err != nil {
			return ListResult{}, fmt.Errorf("restclient: parse count: %w", err)
		}
	}
	raw, ok := envelope[plural]
	if !ok {
		return ListResult{}, fmt.Errorf("restclient: list response has no %q array", plural)
	}
	if err := json.Unmarshal(raw, &result.Rows); err != nil {
		return ListResult{}, fmt.Errorf("restclient: parse %q array: %w", plural, err)
	}
	return result, nil
}

// Update sends an update payload with the configured verb. method must be
// PATCH or PUT.
func (c *Client) Update(ctx context.Context, method, path string, payload map[string]any) (model.Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("restclient: marshal payload: %w", err)
	}

	status, respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, statusError(status, respBody)
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	var rec model.Record
	if err := json.Unmarshal(respBody, &rec); err != nil {
		// Some services answer 204-style with a bare status body.
		return nil, nil
	}
	return rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, path string) error {
	status, body, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return statusError(status, body)
	}
	return nil
}

// HealthCheck calls the service's health endpoint without authentication.
// Used by the dashboard's readiness endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health: status %d", resp.StatusCode)
	}
	return nil
}

// ExpandPath substitutes {name} segments in an endpoint template.
func ExpandPath(template string, params map[string]string) string {
	for name, value := range params {
		template = strings.ReplaceAll(template, "{"+name+"}", url.PathEscape(value))
	}
	return template
}

// do executes one request with retry and the single-flight token refresh. A
// 401 invalidates the token used and replays the request once with a fresh
// one; concurrent 401s collapse into a single refresh at the token source.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if c.breaker != nil && !c.breaker.allow() {
		c.logger.Warn("request rejected by circuit breaker",
			zap.String("method", method),
			zap.String("path", path),
			zap.Stringer("state", c.breaker.currentState()))
		return 0, nil, model.NewBackendUnavailableError()
	}

	retry := c.cfg.Retry
	maxAttempts := retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(method) || !retry.IdempotentOnly

	var lastErr error
	var lastStatus int
	var lastBody []byte
	refreshed := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(retry, attempt)
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		token, err := c.currentToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		status, respBody, err := c.once(ctx, method, path, body, token)
		if c.breaker != nil {
			// Each attempt counts: a backend that needs retries to answer is
			// one the breaker should be watching.
			if err != nil || status >= 500 {
				c.breaker.recordFailure()
			} else {
				c.breaker.recordSuccess()
			}
		}
		if err != nil {
			lastErr = err
			if !canRetry || !isRetryableError(err) {
				return 0, nil, err
			}
			c.logger.Debug("retrying after error",
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Error(err))
			continue
		}

		if status == http.StatusUnauthorized && c.tokens != nil && !refreshed {
			// One replay with a fresh token; a second 401 is a real
			// authorization failure.
			refreshed = true
			c.tokens.Invalidate(token)
			attempt--
			continue
		}

		if isRetryableStatus(status) && canRetry && attempt < maxAttempts-1 {
			lastStatus, lastBody = status, respBody
			c.logger.Debug("retrying after status",
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Int("status", status))
			continue
		}

		return status, respBody, nil
	}

	if lastErr != nil {
		return 0, nil, lastErr
	}
	return lastStatus, lastBody, nil
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("restclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		req.Header.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return 0, nil, model.NewBackendUnavailableError()
		}
		if ctx.Err() != nil {
			return 0, nil, model.NewBackendTimeoutError()
		}
		return 0, nil, fmt.Errorf("restclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		return 0, nil, fmt.Errorf("restclient: read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// statusError maps a backend error status onto an ErrorEnvelope so callers
// get one error shape regardless of which service misbehaved.
func statusError(status int, body []byte) error {
	var parsed model.ErrorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.Code != "" {
		return &parsed
	}

	switch {
	case status == http.StatusNotFound:
		return model.NewNotFoundError("record not found")
	case status == http.StatusConflict:
		return model.NewConflictError("record was modified by someone else")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.NewForbiddenError("backend rejected credentials")
	case status >= 500:
		return model.NewBackendUnavailableError()
	default:
		return model.NewBadRequestError(fmt.Sprintf("backend returned %d", status))
	}
}

// sanitizeHeader strips newlines and carriage returns to prevent header
// injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*model.ErrorEnvelope); ok {
		return false
	}
	return true
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func backoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			delay = cfg.BackoffMax
			break
		}
	}
	return delay
}
