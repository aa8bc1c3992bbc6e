// Package simclient is the HTTP adapter to the robot simulator (C5):
// get_telemetry, get_world, send_command, trigger_scenario. Shaped after the
// teacher's GitHubClient (pkg/runbook/github.go) — a thin *http.Client
// wrapper with a configurable timeout and an optional bearer-style auth
// header set on every request.
package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// Client talks to one simulator instance over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string        // sent as X-Sim-Token when non-empty
	Timeout time.Duration
}

// New builds a Client. Timeout defaults to 5s if unset.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		logger:     slog.Default().With("component", "simclient"),
	}
}

// GetTelemetry fetches the current robot telemetry snapshot.
func (c *Client) GetTelemetry(ctx context.Context) (worldmodel.Telemetry, error) {
	var t worldmodel.Telemetry
	if err := c.doJSON(ctx, http.MethodGet, "/telemetry", nil, &t); err != nil {
		return worldmodel.Telemetry{}, err
	}
	if err := t.Validate(); err != nil {
		return worldmodel.Telemetry{}, fmt.Errorf("simclient: telemetry protocol mismatch: %w", err)
	}
	return t, nil
}

// GetWorld fetches the static world map.
func (c *Client) GetWorld(ctx context.Context) (worldmodel.World, error) {
	var w worldmodel.World
	if err := c.doJSON(ctx, http.MethodGet, "/world", nil, &w); err != nil {
		return worldmodel.World{}, err
	}
	return w, nil
}

// CommandResult is the simulator's acknowledgement of a send_command call.
type CommandResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// SendCommand forwards a governed action to the simulator for execution.
func (c *Client) SendCommand(ctx context.Context, proposal worldmodel.ActionProposal) (CommandResult, error) {
	var res CommandResult
	if err := c.doJSON(ctx, http.MethodPost, "/command", proposal, &res); err != nil {
		return CommandResult{}, err
	}
	return res, nil
}

// TriggerScenario asks the simulator to switch to a named test scenario
// (e.g. spawning a human in the aisle), used by integration/E2E tests.
func (c *Client) TriggerScenario(ctx context.Context, name string, params map[string]any) error {
	body := map[string]any{"scenario": name, "params": params}
	return c.doJSON(ctx, http.MethodPost, "/scenario", body, nil)
}

// doJSON issues an HTTP request with a JSON body (if non-nil) and decodes a
// JSON response into out (if non-nil). A non-2xx response is always a
// TransientExternal condition for the caller to classify and retry/backoff.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("simclient: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("simclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Sim-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("simclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("simclient: %s %s returned HTTP %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("simclient: decode response from %s: %w", path, err)
	}
	return nil
}
