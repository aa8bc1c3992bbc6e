package api

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/robogovern/pkg/agent"
	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/runservice"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// fakeSimServer returns a standalone HTTP server doubling as the simulator,
// the same fixture shape as runservice's arrivedSimServer.
func fakeSimServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.Telemetry{Zone: worldmodel.ZoneAisle, NearestObstacleM: 5, BatteryPct: 80})
	})
	mux.HandleFunc("/world", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.World{Geofence: worldmodel.Rect{MinX: -10, MaxX: 10, MinY: -10, MaxY: 10}})
	})
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(simclient.CommandResult{Accepted: true})
	})
	return httptest.NewServer(mux)
}

// newTestServer builds a Server over an in-memory repo/event store and a
// fake simulator, serving on a random OS-assigned port.
func newTestServer(t *testing.T) (string, func()) {
	t.Helper()
	sim := fakeSimServer()

	repo := runservice.NewMemoryRepo()
	registry := runservice.NewRegistry(repo, simclient.New(simclient.Config{BaseURL: sim.URL}), eventlog.NewMemoryStore(), hub.New(16, 8), runservice.DefaultConfig())

	srv := NewServer(Deps{
		Repo:       repo,
		Registry:   registry,
		Events:     eventlog.NewMemoryStore(),
		Bus:        hub.New(16, 8),
		Sim:        simclient.New(simclient.Config{BaseURL: sim.URL}),
		PolicyCfg:  policy.DefaultConfig(),
		PlannerCfg: agent.DefaultPlannerConfig(),
		AgenticCfg: AgenticConfig{MaxSteps: 6, WallClock: 5 * time.Second},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.StartWithListener(ln) }()

	cleanup := func() {
		sim.Close()
		registry.Shutdown()
	}
	return "http://" + ln.Addr().String(), cleanup
}

func TestHealthEndpoint(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, false, body["planner_enabled"])
}

func TestMissionLifecycle(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	createBody, _ := json.Marshal(map[string]any{
		"title": "dock run",
		"goal":  map[string]float64{"x": 5, "y": 5},
	})
	resp, err := http.Post(base+"/missions", "application/json", bytes.NewReader(createBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created missionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "created", created.Status)

	startResp, err := http.Post(base+"/missions/"+created.ID+"/start", "application/json", nil)
	require.NoError(t, err)
	defer startResp.Body.Close()
	require.Equal(t, http.StatusOK, startResp.StatusCode)

	var startBody map[string]string
	require.NoError(t, json.NewDecoder(startResp.Body).Decode(&startBody))
	require.NotEmpty(t, startBody["run_id"])

	getResp, err := http.Get(base + "/missions/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	var got missionResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&got))
	require.Equal(t, "running", got.Status)
}

func TestMissionCreate_RequiresTitle(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(map[string]any{"goal": map[string]float64{"x": 1, "y": 1}})
	resp, err := http.Post(base+"/missions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPolicyTest_DeniesOutsideGeofence(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	reqBody, _ := json.Marshal(policyTestRequest{
		Telemetry: worldmodel.Telemetry{Zone: worldmodel.ZoneAisle},
		Proposal: worldmodel.ActionProposal{
			Intent: worldmodel.IntentMoveTo,
			Params: worldmodel.MoveToParams{X: 1000, Y: 1000, MaxSpeed: 0.5},
		},
		World: &worldmodel.World{Geofence: worldmodel.Rect{MinX: -10, MaxX: 10, MinY: -10, MaxY: 10}},
	})
	resp, err := http.Post(base+"/policies/test", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decision policy.GovernanceDecision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	require.Equal(t, policy.DecisionDenied, decision.Decision)
	require.Contains(t, decision.PolicyHits, "GEOFENCE_01")
}

func TestPoliciesCatalog(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get(base + "/policies")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []catalogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.NotEmpty(t, entries)
}

func TestPlanGenerate_ProducesWaypointsTowardGoal(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(map[string]any{
		"instruction": "head to the loading bay",
		"goal":        map[string]float64{"x": 2, "y": 0},
	})
	resp, err := http.Post(base+"/plan/generate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got planGenerateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotEmpty(t, got.Waypoints)
	require.True(t, got.AllApproved)
}

func TestAgentPropose_FallsBackToMockWhenNoLLMConfigured(t *testing.T) {
	base, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(map[string]any{"goal": map[string]float64{"x": 2, "y": 0}})
	resp, err := http.Post(base+"/agent/propose", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got agentProposeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "mock", got.ModelUsed)
}
