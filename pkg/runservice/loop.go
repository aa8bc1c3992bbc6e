// Package runservice implements the core per-run control loop (C7): the
// propose → govern → execute → append → broadcast tick cycle, run
// lifecycle (spawn/stop/reap/auto_resume), stagnation detection, and fault
// handling. The registry's spawn/stop/cancel-registry shape is adapted from
// the teacher's queue.WorkerPool (pkg/queue/pool.go); the tick loop itself
// replaces worker.go's "claim a queued session, execute it, mark terminal"
// cycle with this domain's cooperative per-run propose/govern/execute loop,
// since there is no work queue here — each run owns exactly one
// long-lived task for its whole lifetime.
package runservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/antigravity-dev/robogovern/pkg/agent"
	"github.com/antigravity-dev/robogovern/pkg/eventlog"
	"github.com/antigravity-dev/robogovern/pkg/hub"
	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/simclient"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// Config holds the loop's tunables.
type Config struct {
	TickPeriod        time.Duration
	WorldCacheTTL     time.Duration
	StagnationCycles  int64
	StagnationEpsM    float64
	StagnationMinDist float64
	Planner           agent.PlannerConfig
	Policy            policy.Config
}

// DefaultConfig returns the §4.7/§6 documented defaults.
func DefaultConfig() Config {
	return Config{
		TickPeriod:        100 * time.Millisecond,
		WorldCacheTTL:     time.Second,
		StagnationCycles:  30,
		StagnationEpsM:    0.02,
		StagnationMinDist: 0.4,
		Planner:           agent.DefaultPlannerConfig(),
		Policy:            policy.DefaultConfig(),
	}
}

// runState is the loop's private working memory across ticks — nothing
// here is persisted directly; Repo.UpdateRunTick snapshots the relevant
// parts after each tick.
type runState struct {
	tick              int64
	lastGovernance    *policy.GovernanceDecision
	replansThisWindow int
	prevGoalDistance  float64
	stagnantCycles    int64
	cachedWorld       worldmodel.World
	worldFetchedAt    time.Time
}

// runLoop is the cooperative per-run task. It returns when the run reaches
// a terminal status (stopped/completed/failed) or ctx is canceled.
func runLoop(ctx context.Context, runID string, mission MissionRecord, stopCh <-chan struct{}, repo Repo, sim *simclient.Client, events eventlog.Store, bus *hub.Hub, cfg Config) {
	logger := slog.Default().With("run_id", runID, "mission_id", mission.ID)
	state := &runState{}

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic in run loop: %v", r)
			logger.Error("run loop panicked", "error", reason)
			failRun(ctx, runID, reason, repo, events, bus)
		}
	}()

	goal := agent.Goal{X: mission.GoalX, Y: mission.GoalY}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			completeRunAs(ctx, runID, "stopped", repo, events, bus)
			return
		default:
		}

		if err := tick(ctx, runID, goal, state, repo, sim, events, bus, cfg, logger); err != nil {
			if err == errRunCompleted {
				_ = repo.UpdateMissionStatus(ctx, mission.ID, "completed")
				return
			}
			logger.Warn("tick error, continuing", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			completeRunAs(ctx, runID, "stopped", repo, events, bus)
			return
		case <-time.After(cfg.TickPeriod):
		}
	}
}

var errRunCompleted = fmt.Errorf("run completed")

// tick executes exactly one propose → govern → execute → append →
// broadcast cycle, per §4.7's pseudocode.
func tick(ctx context.Context, runID string, goal agent.Goal, state *runState, repo Repo, sim *simclient.Client, events eventlog.Store, bus *hub.Hub, cfg Config, logger *slog.Logger) error {
	tel, err := sim.GetTelemetry(ctx)
	if err != nil {
		appendAlert(ctx, runID, events, "sim_telemetry_unavailable", err.Error())
		return fmt.Errorf("get_telemetry: %w", err)
	}

	world, err := cachedWorld(ctx, sim, state, cfg.WorldCacheTTL)
	if err != nil {
		appendAlert(ctx, runID, events, "sim_world_unavailable", err.Error())
		return fmt.Errorf("get_world: %w", err)
	}

	broadcastTelemetry(bus, runID, tel)
	for _, e := range tel.Events {
		broadcastAlert(bus, runID, e)
	}

	proposal := agent.Plan(tel, goal, state.lastGovernance, cfg.Planner, state.replansThisWindow)
	decision, _ := policy.EvaluateFailClosed(tel, proposal, world, cfg.Policy)

	if _, err := eventlog.AppendWithRetry(ctx, events, runID, "DECISION", map[string]any{
		"context":    map[string]any{"telemetry": tel, "mission_goal": goal},
		"proposal":   proposal,
		"governance": decision,
	}); err != nil {
		logger.Warn("failed to append decision event", "error", err)
	}

	executed := false
	if decision.Decision == policy.DecisionApproved {
		result, err := sim.SendCommand(ctx, proposal)
		if err != nil {
			appendAlert(ctx, runID, events, "sim_command_failed", err.Error())
		} else {
			executed = true
			if _, err := eventlog.AppendWithRetry(ctx, events, runID, "EXECUTION", map[string]any{
				"command": proposal,
				"result":  result,
			}); err != nil {
				logger.Warn("failed to append execution event", "error", err)
			}
		}
	}

	if decision.PolicyState == policy.StateReplan {
		state.replansThisWindow++
	} else {
		state.replansThisWindow = 0
	}
	state.lastGovernance = &decision
	state.tick++

	updateStagnation(state, goal, tel, executed, cfg)
	if state.stagnantCycles >= cfg.StagnationCycles {
		appendStagnation(ctx, runID, events, cfg.StagnationCycles, state.prevGoalDistance)
		appendAlert(ctx, runID, events, "stagnation", fmt.Sprintf("no progress for %d consecutive ticks", cfg.StagnationCycles))
		state.stagnantCycles = 0
	}

	broadcastSummary(bus, runID, state.tick, proposal, decision)

	_ = repo.UpdateRunTick(ctx, runID, state.tick, state.stagnantCycles, string(decision.Decision))

	if proposal.Intent == worldmodel.IntentStop && decision.Decision == policy.DecisionApproved {
		completeRunAs(ctx, runID, "completed", repo, events, bus)
		return errRunCompleted
	}

	return nil
}

// updateStagnation maintains prev_goal_distance/stagnant_cycles per §4.7:
// an executed tick that reduces distance by less than stagnation_eps while
// still far (> stagnation_min_dist) from goal counts as stagnant; real
// progress resets the counter.
func updateStagnation(state *runState, goal agent.Goal, tel worldmodel.Telemetry, executed bool, cfg Config) {
	dist := distance(tel, goal)
	if executed {
		progress := state.prevGoalDistance - dist
		if state.prevGoalDistance > 0 && progress < cfg.StagnationEpsM && dist > cfg.StagnationMinDist {
			state.stagnantCycles++
		} else if progress > cfg.StagnationEpsM {
			state.stagnantCycles = 0
		}
	}
	state.prevGoalDistance = dist
}

func distance(tel worldmodel.Telemetry, goal agent.Goal) float64 {
	return math.Hypot(goal.X-tel.X, goal.Y-tel.Y)
}

func cachedWorld(ctx context.Context, sim *simclient.Client, state *runState, ttl time.Duration) (worldmodel.World, error) {
	if !state.worldFetchedAt.IsZero() && time.Since(state.worldFetchedAt) < ttl {
		return state.cachedWorld, nil
	}
	w, err := sim.GetWorld(ctx)
	if err != nil {
		return worldmodel.World{}, err
	}
	state.cachedWorld = w
	state.worldFetchedAt = time.Now()
	return w, nil
}

func appendAlert(ctx context.Context, runID string, events eventlog.Store, kind, message string) {
	_, _ = eventlog.AppendWithRetry(ctx, events, runID, "ALERT", map[string]any{"kind": kind, "error": message})
}

// appendStagnation records a distinct STAGNATION event alongside the
// generic ALERT raised for the same condition; the broadcast stays
// alert-kind since the operator console doesn't special-case it.
func appendStagnation(ctx context.Context, runID string, events eventlog.Store, cycles int64, goalDistance float64) {
	_, _ = eventlog.AppendWithRetry(ctx, events, runID, "STAGNATION", map[string]any{
		"stagnant_cycles": cycles,
		"goal_distance_m": goalDistance,
	})
}

func broadcastTelemetry(bus *hub.Hub, runID string, tel worldmodel.Telemetry) {
	raw, err := json.Marshal(tel)
	if err != nil {
		return
	}
	bus.Publish(runID, hub.Message{Kind: hub.KindTelemetry, Data: raw})
}

func broadcastAlert(bus *hub.Hub, runID string, event string) {
	raw, _ := json.Marshal(map[string]string{"event": event})
	bus.Publish(runID, hub.Message{Kind: hub.KindAlert, Data: raw})
}

func broadcastSummary(bus *hub.Hub, runID string, tick int64, proposal worldmodel.ActionProposal, decision policy.GovernanceDecision) {
	raw, err := json.Marshal(map[string]any{"tick": tick, "proposal": proposal, "governance": decision})
	if err != nil {
		return
	}
	bus.Publish(runID, hub.Message{Kind: hub.KindEvent, Data: raw})
}

func completeRunAs(ctx context.Context, runID, status string, repo Repo, events eventlog.Store, bus *hub.Hub) {
	_ = repo.UpdateRunStatus(ctx, runID, status, nil)
	_, _ = eventlog.AppendWithRetry(ctx, events, runID, "STATUS", map[string]any{"status": status})
	raw, _ := json.Marshal(map[string]string{"status": status})
	bus.Publish(runID, hub.Message{Kind: hub.KindStatus, Data: raw})
	bus.CloseRun(runID)
}

func failRun(ctx context.Context, runID, reason string, repo Repo, events eventlog.Store, bus *hub.Hub) {
	_, _ = eventlog.AppendWithRetry(ctx, events, runID, "ALERT", map[string]any{"kind": "loop_error", "error": reason})
	_ = repo.UpdateRunStatus(ctx, runID, "failed", &reason)
	raw, _ := json.Marshal(map[string]string{"status": "failed"})
	bus.Publish(runID, hub.Message{Kind: hub.KindStatus, Data: raw})
	bus.CloseRun(runID)
}
