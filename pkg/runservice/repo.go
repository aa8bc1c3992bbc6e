package runservice

import (
	"context"
	"time"
)

// MissionRecord is the persisted mission row the loop reads its goal from.
type MissionRecord struct {
	ID          string
	Name        string
	GoalX       float64
	GoalY       float64
	Status      string
	ActiveRunID *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunRecord is the persisted run row the registry and loop mutate.
type RunRecord struct {
	ID             string
	MissionID      string
	Status         string
	Tick           int64
	StagnantTicks  int64
	LastDecision   string
	FailureReason  *string
}

// Repo is the persistence surface the run loop and registry depend on.
// Satisfied by a pgx-backed implementation in production and by an
// in-memory fake in tests — mirrors the teacher's pattern of depending on a
// narrow interface (SessionRegistry in pkg/queue) rather than a concrete ORM
// client, so the loop stays testable without a database.
type Repo interface {
	CreateMission(ctx context.Context, name string, goalX, goalY float64) (MissionRecord, error)
	GetMission(ctx context.Context, missionID string) (MissionRecord, error)
	ListMissions(ctx context.Context) ([]MissionRecord, error)
	UpdateMissionGoal(ctx context.Context, missionID string, goalX, goalY float64) error
	DeleteMission(ctx context.Context, missionID string) error
	UpdateMissionStatus(ctx context.Context, missionID, status string) error
	SetMissionActiveRun(ctx context.Context, missionID string, runID *string) error

	CreateRun(ctx context.Context, missionID string) (RunRecord, error)
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	ListRunsByMission(ctx context.Context, missionID string) ([]RunRecord, error)
	UpdateRunTick(ctx context.Context, runID string, tick, stagnantTicks int64, lastDecision string) error
	UpdateRunStatus(ctx context.Context, runID string, status string, failureReason *string) error
	ListRunningRuns(ctx context.Context) ([]RunRecord, error)
}
