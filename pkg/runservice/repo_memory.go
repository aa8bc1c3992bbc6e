package runservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process Repo used by unit tests.
type MemoryRepo struct {
	mu       sync.Mutex
	missions map[string]MissionRecord
	runs     map[string]RunRecord
}

// NewMemoryRepo seeds the repo with the given missions, keyed by ID.
func NewMemoryRepo(missions ...MissionRecord) *MemoryRepo {
	r := &MemoryRepo{missions: make(map[string]MissionRecord), runs: make(map[string]RunRecord)}
	for _, m := range missions {
		r.missions[m.ID] = m
	}
	return r
}

func (r *MemoryRepo) CreateMission(ctx context.Context, name string, goalX, goalY float64) (MissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	m := MissionRecord{ID: uuid.New().String(), Name: name, GoalX: goalX, GoalY: goalY, Status: "created", CreatedAt: now, UpdatedAt: now}
	r.missions[m.ID] = m
	return m, nil
}

func (r *MemoryRepo) GetMission(ctx context.Context, missionID string) (MissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.missions[missionID]
	if !ok {
		return MissionRecord{}, fmt.Errorf("runservice: mission %s not found", missionID)
	}
	return m, nil
}

func (r *MemoryRepo) ListMissions(ctx context.Context) ([]MissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MissionRecord, 0, len(r.missions))
	for _, m := range r.missions {
		out = append(out, m)
	}
	return out, nil
}

func (r *MemoryRepo) UpdateMissionGoal(ctx context.Context, missionID string, goalX, goalY float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.missions[missionID]
	if !ok {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	m.GoalX, m.GoalY = goalX, goalY
	m.UpdatedAt = time.Now()
	r.missions[missionID] = m
	return nil
}

func (r *MemoryRepo) DeleteMission(ctx context.Context, missionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missions[missionID]; !ok {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	delete(r.missions, missionID)
	for id, run := range r.runs {
		if run.MissionID == missionID {
			delete(r.runs, id)
		}
	}
	return nil
}

func (r *MemoryRepo) UpdateMissionStatus(ctx context.Context, missionID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.missions[missionID]
	if !ok {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	r.missions[missionID] = m
	return nil
}

func (r *MemoryRepo) SetMissionActiveRun(ctx context.Context, missionID string, runID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.missions[missionID]
	if !ok {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	m.ActiveRunID = runID
	r.missions[missionID] = m
	return nil
}

func (r *MemoryRepo) CreateRun(ctx context.Context, missionID string) (RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := RunRecord{ID: uuid.New().String(), MissionID: missionID, Status: "running"}
	r.runs[run.ID] = run
	return run, nil
}

func (r *MemoryRepo) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return RunRecord{}, fmt.Errorf("runservice: run %s not found", runID)
	}
	return run, nil
}

func (r *MemoryRepo) ListRunsByMission(ctx context.Context, missionID string) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RunRecord
	for _, run := range r.runs {
		if run.MissionID == missionID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpdateRunTick(ctx context.Context, runID string, tick, stagnantTicks int64, lastDecision string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("runservice: run %s not found", runID)
	}
	run.Tick = tick
	run.StagnantTicks = stagnantTicks
	run.LastDecision = lastDecision
	r.runs[runID] = run
	return nil
}

func (r *MemoryRepo) UpdateRunStatus(ctx context.Context, runID string, status string, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("runservice: run %s not found", runID)
	}
	run.Status = status
	run.FailureReason = failureReason
	r.runs[runID] = run
	return nil
}

func (r *MemoryRepo) ListRunningRuns(ctx context.Context) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RunRecord
	for _, run := range r.runs {
		if run.Status == "running" {
			out = append(out, run)
		}
	}
	return out, nil
}
