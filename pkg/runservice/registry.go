package runservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
)

// Registry manages the set of live run loops in this process — one
// goroutine per run instead of the teacher's fixed worker pool pulling from
// a shared queue (pkg/queue.WorkerPool), since every run is itself a
// long-lived task rather than a short unit of queued work. The run_id →
// cancel-func bookkeeping and graceful-stop shape is carried over from
// WorkerPool's activeSessions registry.
type Registry struct {
	repo   Repo
	sim    *simclient.Client
	events eventlog.Store
	bus    *hub.Hub
	cfg    Config

	mu      sync.Mutex
	running map[string]context.CancelFunc
	stopChs map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry builds a Registry wired to the given dependencies.
func NewRegistry(repo Repo, sim *simclient.Client, events eventlog.Store, bus *hub.Hub, cfg Config) *Registry {
	return &Registry{
		repo:    repo,
		sim:     sim,
		events:  events,
		bus:     bus,
		cfg:     cfg,
		running: make(map[string]context.CancelFunc),
		stopChs: make(map[string]chan struct{}),
	}
}

// Spawn creates a run row for missionID and launches its control loop.
func (reg *Registry) Spawn(ctx context.Context, missionID string) (string, error) {
	mission, err := reg.repo.GetMission(ctx, missionID)
	if err != nil {
		return "", fmt.Errorf("runservice: spawn: %w", err)
	}

	run, err := reg.repo.CreateRun(ctx, missionID)
	if err != nil {
		return "", fmt.Errorf("runservice: spawn: %w", err)
	}

	reg.launch(run.ID, mission)
	return run.ID, nil
}

// launch registers the run and starts its loop goroutine. Shared by Spawn
// and AutoResume.
func (reg *Registry) launch(runID string, mission MissionRecord) {
	loopCtx, cancel := context.WithCancel(context.Background())
	stopCh := make(chan struct{})

	reg.mu.Lock()
	reg.running[runID] = cancel
	reg.stopChs[runID] = stopCh
	reg.mu.Unlock()

	reg.wg.Add(1)
	go func() {
		defer reg.wg.Done()
		defer reg.unregister(runID)
		runLoop(loopCtx, runID, mission, stopCh, reg.repo, reg.sim, reg.events, reg.bus, reg.cfg)
	}()
}

func (reg *Registry) unregister(runID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.running, runID)
	delete(reg.stopChs, runID)
}

// Stop requests a graceful stop of runID: the loop finishes its in-flight
// tick, marks the run stopped, and exits. Returns false if runID is not
// running on this process.
func (reg *Registry) Stop(runID string) bool {
	reg.mu.Lock()
	stopCh, ok := reg.stopChs[runID]
	reg.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	return true
}

// Cancel forcibly tears down runID's loop without a graceful stop sequence —
// used when the process is shutting down, mirroring WorkerPool.Stop's
// "signal then wait" shutdown rather than CancelSession's per-run cancel.
func (reg *Registry) Cancel(runID string) bool {
	reg.mu.Lock()
	cancel, ok := reg.running[runID]
	reg.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Shutdown cancels every running loop and waits for them to exit.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	ids := make([]string, 0, len(reg.running))
	for id := range reg.running {
		ids = append(ids, id)
	}
	reg.mu.Unlock()

	for _, id := range ids {
		reg.Cancel(id)
	}
	reg.wg.Wait()
}

// Running reports whether runID has a live loop goroutine on this process.
func (reg *Registry) Running(runID string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.running[runID]
	return ok
}

// AutoResume re-launches a loop goroutine for every run this process's Repo
// reports as still "running" — the process restarted and every such row's
// task is necessarily gone, per §4.7's restart-recovery note. Runs whose
// mission can no longer be loaded are marked failed instead of resumed.
func (reg *Registry) AutoResume(ctx context.Context) error {
	runs, err := reg.repo.ListRunningRuns(ctx)
	if err != nil {
		return fmt.Errorf("runservice: auto_resume: list running runs: %w", err)
	}

	for _, run := range runs {
		mission, err := reg.repo.GetMission(ctx, run.MissionID)
		if err != nil {
			reason := fmt.Sprintf("auto_resume: mission %s unavailable: %v", run.MissionID, err)
			_ = reg.repo.UpdateRunStatus(ctx, run.ID, "failed", &reason)
			slog.Warn("dropping orphaned run on resume", "run_id", run.ID, "error", err)
			continue
		}
		slog.Info("resuming run after restart", "run_id", run.ID, "mission_id", run.MissionID)
		reg.launch(run.ID, mission)
	}
	return nil
}
