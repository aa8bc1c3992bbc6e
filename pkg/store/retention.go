package store

import (
	"context"
	"fmt"
	"time"
)

// PurgeFinishedRunsOlderThan deletes every run in a terminal status
// (completed/stopped/failed) whose finished_at predates the cutoff, along
// with its event-log rows via the ON DELETE CASCADE on events.run_id.
// Returns the number of runs removed.
func (p *Pool) PurgeFinishedRunsOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := p.Exec(ctx, `
		DELETE FROM runs
		WHERE status IN ('completed', 'stopped', 'failed')
		  AND finished_at IS NOT NULL
		  AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge finished runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
