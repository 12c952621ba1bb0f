package db

import (
	"context"
	"fmt"
	"time"

	"horse.fit/currents/internal/globaltime"
)

// Engagement aggregates a user's interaction history into the counters the
// ranking features read.
type Engagement struct {
	TopicClicks    map[int64]int
	CategoryClicks map[string]int
	RecentTopicIDs map[int64]struct{}
}

// eventTimestamp keeps event times on the shared clock so they stay
// mockable alongside every other timestamp in the tree.
func eventTimestamp(ev Event) time.Time {
	if ev.CreatedAt.IsZero() {
		return globaltime.UTC()
	}
	return ev.CreatedAt
}

// InsertEvent appends one interaction to the event log.
func (p *Pool) InsertEvent(ctx context.Context, ev Event) error {
	const q = `
INSERT INTO news.events (user_id, topic_id, digest_id, event_type, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := p.Exec(ctx, q, ev.UserID, ev.TopicID, ev.DigestID, ev.EventType, eventTimestamp(ev)); err != nil {
		return fmt.Errorf("insert event user_id=%s type=%s: %w", ev.UserID, ev.EventType, err)
	}
	return nil
}

// GetEngagement loads per-topic and per-category click counters plus the set
// of topics the user touched within the recency window.
func (p *Pool) GetEngagement(ctx context.Context, userID string, recentSince time.Time) (Engagement, error) {
	eng := Engagement{
		TopicClicks:    make(map[int64]int),
		CategoryClicks: make(map[string]int),
		RecentTopicIDs: make(map[int64]struct{}),
	}

	const q = `
SELECT e.topic_id, t.category, e.created_at
FROM news.events e
JOIN news.topics t ON t.topic_id = e.topic_id
WHERE e.user_id = $1
  AND e.topic_id IS NOT NULL
  AND e.event_type IN ('click', 'save', 'read')
`
	rows, err := p.Query(ctx, q, userID)
	if err != nil {
		return Engagement{}, fmt.Errorf("query engagement user_id=%s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			topicID   int64
			category  *string
			createdAt time.Time
		)
		if err := rows.Scan(&topicID, &category, &createdAt); err != nil {
			return Engagement{}, fmt.Errorf("scan engagement row: %w", err)
		}
		eng.TopicClicks[topicID]++
		if category != nil && *category != "" {
			eng.CategoryClicks[*category]++
		}
		if createdAt.After(recentSince) {
			eng.RecentTopicIDs[topicID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return Engagement{}, fmt.Errorf("iterate engagement rows: %w", err)
	}
	return eng, nil
}
