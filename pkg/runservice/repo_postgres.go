package runservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/antigravity-dev/robogovern/pkg/store"
)

// PostgresRepo is the pgx-backed Repo implementation, querying the
// missions/runs tables store.Open migrates into place.
type PostgresRepo struct {
	pool *store.Pool
}

// NewPostgresRepo wraps an open pool.
func NewPostgresRepo(pool *store.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) CreateMission(ctx context.Context, name string, goalX, goalY float64) (MissionRecord, error) {
	m := MissionRecord{ID: uuid.New().String(), Name: name, GoalX: goalX, GoalY: goalY, Status: "created"}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO missions (id, name, goal_x, goal_y, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.GoalX, m.GoalY, m.Status)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return MissionRecord{}, fmt.Errorf("runservice: create mission: %w", err)
	}
	return m, nil
}

func (r *PostgresRepo) GetMission(ctx context.Context, missionID string) (MissionRecord, error) {
	var m MissionRecord
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, goal_x, goal_y, status, active_run_id, created_at, updated_at
		FROM missions WHERE id = $1`, missionID)
	if err := row.Scan(&m.ID, &m.Name, &m.GoalX, &m.GoalY, &m.Status, &m.ActiveRunID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return MissionRecord{}, fmt.Errorf("runservice: get mission: %w", err)
	}
	return m, nil
}

func (r *PostgresRepo) ListMissions(ctx context.Context) ([]MissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, goal_x, goal_y, status, active_run_id, created_at, updated_at
		FROM missions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("runservice: list missions: %w", err)
	}
	defer rows.Close()

	var out []MissionRecord
	for rows.Next() {
		var m MissionRecord
		if err := rows.Scan(&m.ID, &m.Name, &m.GoalX, &m.GoalY, &m.Status, &m.ActiveRunID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("runservice: scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateMissionGoal(ctx context.Context, missionID string, goalX, goalY float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE missions SET goal_x = $2, goal_y = $3, updated_at = now() WHERE id = $1`, missionID, goalX, goalY)
	if err != nil {
		return fmt.Errorf("runservice: update mission goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	return nil
}

func (r *PostgresRepo) DeleteMission(ctx context.Context, missionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM missions WHERE id = $1`, missionID)
	if err != nil {
		return fmt.Errorf("runservice: delete mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("runservice: mission %s not found", missionID)
	}
	return nil
}

func (r *PostgresRepo) SetMissionActiveRun(ctx context.Context, missionID string, runID *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE missions SET active_run_id = $2, updated_at = now() WHERE id = $1`, missionID, runID)
	if err != nil {
		return fmt.Errorf("runservice: set mission active run: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListRunsByMission(ctx context.Context, missionID string) ([]RunRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mission_id, status, tick, stagnant_ticks, COALESCE(last_decision, ''), failure_reason
		FROM runs WHERE mission_id = $1 ORDER BY started_at ASC`, missionID)
	if err != nil {
		return nil, fmt.Errorf("runservice: list runs by mission: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.MissionID, &run.Status, &run.Tick, &run.StagnantTicks, &run.LastDecision, &run.FailureReason); err != nil {
			return nil, fmt.Errorf("runservice: scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateRun(ctx context.Context, missionID string) (RunRecord, error) {
	run := RunRecord{ID: uuid.New().String(), MissionID: missionID, Status: "running"}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO runs (id, mission_id, status, tick, stagnant_ticks)
		VALUES ($1, $2, $3, 0, 0)`,
		run.ID, run.MissionID, run.Status)
	if err != nil {
		return RunRecord{}, fmt.Errorf("runservice: create run: %w", err)
	}
	return run, nil
}

func (r *PostgresRepo) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var run RunRecord
	row := r.pool.QueryRow(ctx, `
		SELECT id, mission_id, status, tick, stagnant_ticks, COALESCE(last_decision, ''), failure_reason
		FROM runs WHERE id = $1`, runID)
	if err := row.Scan(&run.ID, &run.MissionID, &run.Status, &run.Tick, &run.StagnantTicks, &run.LastDecision, &run.FailureReason); err != nil {
		return RunRecord{}, fmt.Errorf("runservice: get run: %w", err)
	}
	return run, nil
}

func (r *PostgresRepo) UpdateRunTick(ctx context.Context, runID string, tick, stagnantTicks int64, lastDecision string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs SET tick = $2, stagnant_ticks = $3, last_decision = $4, updated_at = now()
		WHERE id = $1`, runID, tick, stagnantTicks, lastDecision)
	if err != nil {
		return fmt.Errorf("runservice: update run tick: %w", err)
	}
	return nil
}

func (r *PostgresRepo) UpdateRunStatus(ctx context.Context, runID string, status string, failureReason *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $2, failure_reason = $3, updated_at = now(),
			finished_at = CASE WHEN $2 IN ('completed', 'stopped', 'failed') THEN now() ELSE finished_at END
		WHERE id = $1`, runID, status, failureReason)
	if err != nil {
		return fmt.Errorf("runservice: update run status: %w", err)
	}
	return nil
}

func (r *PostgresRepo) UpdateMissionStatus(ctx context.Context, missionID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE missions SET status = $2, updated_at = now() WHERE id = $1`, missionID, status)
	if err != nil {
		return fmt.Errorf("runservice: update mission status: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListRunningRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, mission_id, status, tick, stagnant_ticks, COALESCE(last_decision, ''), failure_reason FROM runs WHERE status = 'running'`)
	if err != nil {
		return nil, fmt.Errorf("runservice: list running runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.MissionID, &run.Status, &run.Tick, &run.StagnantTicks, &run.LastDecision, &run.FailureReason); err != nil {
			return nil, fmt.Errorf("runservice: scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
