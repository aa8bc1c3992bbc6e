package simclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

func TestClient_GetTelemetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/telemetry", r.URL.Path)
		_ = json.NewEncoder(w).Encode(worldmodel.Telemetry{Zone: worldmodel.ZoneAisle, HumanConf: 0})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	tel, err := c.GetTelemetry(context.Background())
	require.NoError(t, err)
	require.Equal(t, worldmodel.ZoneAisle, tel.Zone)
}

func TestClient_GetTelemetry_RejectsProtocolMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.Telemetry{Zone: "bogus"})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.GetTelemetry(context.Background())
	require.Error(t, err)
}

func TestClient_SendCommand_SetsAuthToken(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Sim-Token")
		_ = json.NewEncoder(w).Encode(CommandResult{Accepted: true})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Token: "secret-123"})
	res, err := c.SendCommand(context.Background(), worldmodel.ActionProposal{Intent: worldmodel.IntentStop})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "secret-123", gotToken)
}

func TestClient_SendCommand_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.SendCommand(context.Background(), worldmodel.ActionProposal{Intent: worldmodel.IntentStop})
	require.Error(t, err)
}

func TestClient_TriggerScenario(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	err := c.TriggerScenario(context.Background(), "human_crosses_aisle", map[string]any{"speed": 1.2})
	require.NoError(t, err)
	assert.Equal(t, "human_crosses_aisle", gotBody["scenario"])
}
