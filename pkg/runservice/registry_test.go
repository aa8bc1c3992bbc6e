package runservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

func arrivedSimServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.Telemetry{Zone: worldmodel.ZoneAisle, NearestObstacleM: 5, BatteryPct: 80})
	})
	mux.HandleFunc("/world", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.World{})
	})
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(simclient.CommandResult{Accepted: true})
	})
	return httptest.NewServer(mux)
}

func TestRegistry_SpawnAndAutoComplete(t *testing.T) {
	srv := arrivedSimServer()
	defer srv.Close()

	repo := NewMemoryRepo(MissionRecord{ID: "m1", Name: "dock", GoalX: 0, GoalY: 0})
	reg := NewRegistry(repo, simclient.New(simclient.Config{BaseURL: srv.URL}), eventlog.NewMemoryStore(), hub.New(16, 8), testLoopConfig())

	runID, err := reg.Spawn(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, reg.Running(runID))

	require.Eventually(t, func() bool {
		run, err := repo.GetRun(context.Background(), runID)
		return err == nil && run.Status == "completed"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRegistry_StopSignalsGracefulStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.Telemetry{Zone: worldmodel.ZoneAisle})
	})
	mux.HandleFunc("/world", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(worldmodel.World{})
	})
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(simclient.CommandResult{Accepted: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	repo := NewMemoryRepo(MissionRecord{ID: "m1", GoalX: 1000, GoalY: 1000})
	reg := NewRegistry(repo, simclient.New(simclient.Config{BaseURL: srv.URL}), eventlog.NewMemoryStore(), hub.New(16, 8), testLoopConfig())

	runID, err := reg.Spawn(context.Background(), "m1")
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)
	require.True(t, reg.Stop(runID))

	require.Eventually(t, func() bool {
		run, err := repo.GetRun(context.Background(), runID)
		return err == nil && run.Status == "stopped"
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return !reg.Running(runID) }, time.Second, 5*time.Millisecond)
}

func TestRegistry_AutoResume_RelaunchesRunningRows(t *testing.T) {
	srv := arrivedSimServer()
	defer srv.Close()

	repo := NewMemoryRepo(MissionRecord{ID: "m1", GoalX: 0, GoalY: 0})
	preexisting, err := repo.CreateRun(context.Background(), "m1")
	require.NoError(t, err)

	reg := NewRegistry(repo, simclient.New(simclient.Config{BaseURL: srv.URL}), eventlog.NewMemoryStore(), hub.New(16, 8), testLoopConfig())
	require.False(t, reg.Running(preexisting.ID))

	require.NoError(t, reg.AutoResume(context.Background()))
	require.True(t, reg.Running(preexisting.ID))

	require.Eventually(t, func() bool {
		run, err := repo.GetRun(context.Background(), preexisting.ID)
		return err == nil && run.Status == "completed"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRegistry_AutoResume_FailsOrphanedRunWithMissingMission(t *testing.T) {
	srv := arrivedSimServer()
	defer srv.Close()

	repo := NewMemoryRepo(MissionRecord{ID: "m1", GoalX: 0, GoalY: 0})
	orphan, err := repo.CreateRun(context.Background(), "m1")
	require.NoError(t, err)
	repo.mu.Lock()
	delete(repo.missions, "m1")
	repo.mu.Unlock()

	reg := NewRegistry(repo, simclient.New(simclient.Config{BaseURL: srv.URL}), eventlog.NewMemoryStore(), hub.New(16, 8), testLoopConfig())
	require.NoError(t, reg.AutoResume(context.Background()))
	require.False(t, reg.Running(orphan.ID))

	run, err := repo.GetRun(context.Background(), orphan.ID)
	require.NoError(t, err)
	require.Equal(t, "failed", run.Status)
}

func testLoopConfig() Config {
	cfg := DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond
	return cfg
}
