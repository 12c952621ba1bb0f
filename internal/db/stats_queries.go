package db

import (
	"context"
	"fmt"
	"time"
)

// Stats is the operational counters snapshot served by the API.
type Stats struct {
	Articles       int64      `json:"articles"`
	Duplicates     int64      `json:"duplicates"`
	ActiveTopics   int64      `json:"active_topics"`
	MergedTopics   int64      `json:"merged_topics"`
	Digests        int64      `json:"digests"`
	Embeddings     int64      `json:"embeddings"`
	Events         int64      `json:"events"`
	LastTaskStage  *string    `json:"last_task_stage,omitempty"`
	LastTaskStatus *string    `json:"last_task_status,omitempty"`
	LastTaskAt     *time.Time `json:"last_task_at,omitempty"`
}

// GetStats collects table counters in one round trip.
func (p *Pool) GetStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM news.articles),
	(SELECT count(*) FROM news.articles WHERE duplicate_of IS NOT NULL),
	(SELECT count(*) FROM news.topics WHERE merged_into IS NULL),
	(SELECT count(*) FROM news.topics WHERE merged_into IS NOT NULL),
	(SELECT count(*) FROM news.digests WHERE status = 'ok'),
	(SELECT count(*) FROM news.digest_embeddings),
	(SELECT count(*) FROM news.events)
`
	var s Stats
	if err := p.QueryRow(ctx, q).Scan(
		&s.Articles,
		&s.Duplicates,
		&s.ActiveTopics,
		&s.MergedTopics,
		&s.Digests,
		&s.Embeddings,
		&s.Events,
	); err != nil {
		return Stats{}, fmt.Errorf("query stats counters: %w", err)
	}

	const lastQ = `
SELECT stage, status, started_at
FROM news.task_runs
ORDER BY started_at DESC
LIMIT 1
`
	var (
		stage, status string
		startedAt     time.Time
	)
	err := p.QueryRow(ctx, lastQ).Scan(&stage, &status, &startedAt)
	if err != nil && !IsNoRows(err) {
		return Stats{}, fmt.Errorf("query latest task run: %w", err)
	}
	if err == nil {
		s.LastTaskStage = &stage
		s.LastTaskStatus = &status
		s.LastTaskAt = &startedAt
	}
	return s, nil
}
