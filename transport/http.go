package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPRelay forwards to the on-device service's HTTP API.
type HTTPRelay struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// NewHTTPRelay creates a relay for baseURL. timeout bounds each call.
func NewHTTPRelay(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPRelay {
	return &HTTPRelay{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   "rover-bridge/1.0",
		},
		logger: logger.With("transport_type", "http", "robot_base_url", baseURL),
	}
}

// Forward posts req to /control/set.
func (hr *HTTPRelay) Forward(ctx context.Context, req Request) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay request: %w", err)
	}
	return hr.do(ctx, OpForward, http.MethodPost, "/control/set", payload)
}

// Stop posts to /control/stop.
func (hr *HTTPRelay) Stop(ctx context.Context) (json.RawMessage, error) {
	return hr.do(ctx, OpStop, http.MethodPost, "/control/stop", nil)
}

// Status fetches /control/status.
func (hr *HTTPRelay) Status(ctx context.Context) (json.RawMessage, error) {
	return hr.do(ctx, OpStatus, http.MethodGet, "/control/status", nil)
}

func (hr *HTTPRelay) do(ctx context.Context, op, method, path string, payload []byte) (reply json.RawMessage, err error) {
	start := time.Now()
	url := hr.baseURL + path
	defer func() {
		observe(op, start, err)
		if err != nil {
			err = &RemoteUnavailableError{Op: op, Target: url, Err: err}
			hr.logger.Warn("Relay request failed", "op", op, slog.Any("error", err))
		}
	}()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for key, value := range hr.headers {
		req.Header.Set(key, value)
	}

	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("response is not JSON: %.64q", data)
	}

	hr.logger.Debug("Relay request successful", "op", op, "status", resp.StatusCode)
	return json.RawMessage(data), nil
}

func (hr *HTTPRelay) Type() TransportType {
	return TransportTypeHTTP
}

// Close releases idle connections.
func (hr *HTTPRelay) Close() error {
	hr.client.CloseIdleConnections()
	return nil
}
