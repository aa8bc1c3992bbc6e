package runservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// fakeSim serves a minimal /telemetry, /world, /command surface. tick
// increments on every /telemetry poll so tests can drive the run toward
// arrival deterministically.
type fakeSim struct {
	tick       int64
	commands   int64
	world      worldmodel.World
	atGoal     bool
	goalX      float64
	goalY      float64
}

func newFakeSimServer(t *testing.T, goalX, goalY float64) (*httptest.Server, *fakeSim) {
	f := &fakeSim{goalX: goalX, goalY: goalY}
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&f.tick, 1)
		tel := worldmodel.Telemetry{Zone: worldmodel.ZoneAisle, NearestObstacleM: 5, BatteryPct: 80}
		if n >= 2 || atomic.LoadInt64(&f.commands) > 0 {
			tel.X, tel.Y = f.goalX, f.goalY
		}
		_ = json.NewEncoder(w).Encode(tel)
	})
	mux.HandleFunc("/world", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.world)
	})
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.commands, 1)
		_ = json.NewEncoder(w).Encode(simclient.CommandResult{Accepted: true})
	})
	return httptest.NewServer(mux), f
}

func TestRunLoop_CompletesOnArrival(t *testing.T) {
	srv, _ := newFakeSimServer(t, 0, 0)
	defer srv.Close()

	sim := simclient.New(simclient.Config{BaseURL: srv.URL})
	repo := NewMemoryRepo(MissionRecord{ID: "m1", Name: "dock", GoalX: 0, GoalY: 0, Status: "active"})
	events := eventlog.NewMemoryStore()
	bus := hub.New(16, 8)
	cfg := DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond

	run, err := repo.CreateRun(context.Background(), "m1")
	require.NoError(t, err)

	mission, err := repo.GetMission(context.Background(), "m1")
	require.NoError(t, err)

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runLoop(context.Background(), run.ID, mission, stopCh, repo, sim, events, bus, cfg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("run loop did not complete in time")
	}

	final, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", final.Status)

	evs, err := events.List(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	require.NoError(t, events.Verify(context.Background(), run.ID))
}

func TestRunLoop_StopSignalMarksRunStopped(t *testing.T) {
	srv, _ := newFakeSimServer(t, 0, 0) // robot stays at the origin, never reaching the mission goal
	defer srv.Close()

	sim := simclient.New(simclient.Config{BaseURL: srv.URL})
	repo := NewMemoryRepo(MissionRecord{ID: "m1", GoalX: 1000, GoalY: 1000})
	events := eventlog.NewMemoryStore()
	bus := hub.New(16, 8)
	cfg := DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond

	run, err := repo.CreateRun(context.Background(), "m1")
	require.NoError(t, err)
	mission, err := repo.GetMission(context.Background(), "m1")
	require.NoError(t, err)

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runLoop(context.Background(), run.ID, mission, stopCh, repo, sim, events, bus, cfg)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(stopCh)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("run loop did not stop in time")
	}

	final, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, "stopped", final.Status)
}

func TestRunLoop_SimUnavailable_AppendsAlertAndContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sim := simclient.New(simclient.Config{BaseURL: srv.URL})
	repo := NewMemoryRepo(MissionRecord{ID: "m1", GoalX: 5, GoalY: 5})
	events := eventlog.NewMemoryStore()
	bus := hub.New(16, 8)
	cfg := DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond

	run, err := repo.CreateRun(context.Background(), "m1")
	require.NoError(t, err)
	mission, err := repo.GetMission(context.Background(), "m1")
	require.NoError(t, err)

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runLoop(context.Background(), run.ID, mission, stopCh, repo, sim, events, bus, cfg)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	close(stopCh)
	<-done

	evs, err := events.List(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	require.Equal(t, "ALERT", evs[0].Type)
}
