package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError reports a non-2xx response from a remote function.
type StatusError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Target, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// NewInstrumentedClient returns an http.Client whose transport emits OpenTelemetry spans.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// HTTPClient wraps an http.Client with retry, timeout and circuit-breaker logic.
// MaxAttempts of 1 disables retries; callers hitting non-idempotent endpoints
// must keep it that way.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	Target      string
	Logger      *zerolog.Logger
}

// Do sends req, retrying 5xx, 429 and transport errors up to MaxAttempts with
// capped exponential backoff. The body is buffered so attempts can replay it.
// Once every attempt failed the last error is returned; an open breaker
// short-circuits with ErrOpenCircuit.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1, 1, time.Second)
	}
	maxAttempts := cl.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := cl.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !breaker.Allow(ctx) {
			cl.count("circuit_open")
			return nil, ErrOpenCircuit
		}
		start := time.Now()
		resp, err := cl.doOnce(ctx, cloneRequest(ctx, req, body))
		OutboundLatency.WithLabelValues(cl.target()).Observe(time.Since(start).Seconds())

		if err == nil {
			serr := &StatusError{Target: cl.target(), StatusCode: resp.StatusCode}
			if !serr.Retryable() {
				breaker.Report(ctx, true)
				cl.count("ok")
				return resp, nil
			}
			serr.Body = readSnippet(resp)
			lastErr = serr
			// A 429 means the remote is alive and shedding load.
			breaker.Report(ctx, resp.StatusCode == http.StatusTooManyRequests)
		} else {
			lastErr = err
			breaker.Report(ctx, false)
		}
		cl.count("error")
		cl.logger().Warn().Err(lastErr).Str("target", cl.target()).Int("attempt", attempt).Msg("outbound_attempt_failed")
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(baseBackoff, attempt, cl.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// DoJSON posts in as JSON (GET when in is nil) and decodes a 2xx response into out.
// Non-2xx responses come back as *StatusError.
func (cl HTTPClient) DoJSON(ctx context.Context, method, url string, headers map[string]string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.target(), err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.target(), err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := cl.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Target: cl.target(), StatusCode: resp.StatusCode, Body: readSnippet(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", cl.target(), err)
	}
	return nil
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	if timeout <= 0 {
		return cl.Client.Do(req)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (cl HTTPClient) target() string {
	if t := strings.TrimSpace(cl.Target); t != "" {
		return t
	}
	return "outbound"
}

func (cl HTTPClient) count(outcome string) {
	OutboundRequests.WithLabelValues(cl.target(), outcome).Inc()
}

func (cl HTTPClient) logger() *zerolog.Logger {
	if cl.Logger != nil {
		return cl.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func readSnippet(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	return strings.TrimSpace(string(data))
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	return data, nil
}

func cloneRequest(ctx context.Context, req *http.Request, body []byte) *http.Request {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
		clone.Header.Set("Content-Length", strconv.Itoa(len(body)))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return clone
}
