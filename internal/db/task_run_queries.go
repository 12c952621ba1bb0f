package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartTaskRun opens a ledger row for one batch stage invocation and returns
// its uuid.
func (p *Pool) StartTaskRun(ctx context.Context, stage string, startedAt time.Time) (string, error) {
	runUUID := uuid.NewString()

	const q = `
INSERT INTO news.task_runs (task_run_uuid, stage, started_at, status)
VALUES ($1::uuid, $2, $3, 'running')
`
	if _, err := p.Exec(ctx, q, runUUID, stage, startedAt); err != nil {
		return "", fmt.Errorf("start task run stage=%s: %w", stage, err)
	}
	return runUUID, nil
}

// FinishTaskRun closes the ledger row. A non-nil runErr marks the run failed
// and records the message; stats may be any JSON-encodable value.
func (p *Pool) FinishTaskRun(ctx context.Context, runUUID string, finishedAt time.Time, stats any, runErr error) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode task run stats: %w", err)
	}

	status := "ok"
	var errorMessage *string
	if runErr != nil {
		status = "failed"
		message := runErr.Error()
		errorMessage = &message
	}

	const q = `
UPDATE news.task_runs
SET finished_at = $2, status = $3, stats = $4::jsonb, error_message = $5
WHERE task_run_uuid = $1::uuid
`
	if _, err := p.Exec(ctx, q, runUUID, finishedAt, status, string(statsJSON), errorMessage); err != nil {
		return fmt.Errorf("finish task run uuid=%s: %w", runUUID, err)
	}
	return nil
}
