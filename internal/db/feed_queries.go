package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Preferences is the read model for a user's category/keyword choices.
type Preferences struct {
	UserID     string   `json:"user_id"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
}

// FeedCandidate is one row from the approximate-nearest-neighbor candidate
// retrieval, before scoring.
type FeedCandidate struct {
	DigestID           int64
	DigestUUID         string
	TopicID            int64
	TopicUUID          string
	Title              *string
	Category           *string
	DigestText         string
	CreatedAt          time.Time
	PopularityCount    int
	TopicFirstSeenAt   time.Time
	TopicLastUpdatedAt time.Time
	EmbeddingLiteral   string
}

// GetPreferences loads a user's stored preferences.
func (p *Pool) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	const q = `
SELECT user_id, categories, keywords
FROM news.user_preferences
WHERE user_id = $1
`
	var (
		prefs         Preferences
		categoriesRaw []byte
		keywordsRaw   []byte
	)
	err := p.QueryRow(ctx, q, userID).Scan(&prefs.UserID, &categoriesRaw, &keywordsRaw)
	if err != nil {
		if IsNoRows(err) {
			return Preferences{}, false, nil
		}
		return Preferences{}, false, fmt.Errorf("get preferences user_id=%s: %w", userID, err)
	}

	if len(categoriesRaw) > 0 {
		if err := json.Unmarshal(categoriesRaw, &prefs.Categories); err != nil {
			return Preferences{}, false, fmt.Errorf("decode preference categories user_id=%s: %w", userID, err)
		}
	}
	if len(keywordsRaw) > 0 {
		if err := json.Unmarshal(keywordsRaw, &prefs.Keywords); err != nil {
			return Preferences{}, false, fmt.Errorf("decode preference keywords user_id=%s: %w", userID, err)
		}
	}
	return prefs, true, nil
}

// UpsertPreferences stores a user's category/keyword choices.
func (p *Pool) UpsertPreferences(ctx context.Context, prefs Preferences, now time.Time) error {
	categoriesJSON, err := json.Marshal(emptyIfNil(prefs.Categories))
	if err != nil {
		return fmt.Errorf("encode preference categories: %w", err)
	}
	keywordsJSON, err := json.Marshal(emptyIfNil(prefs.Keywords))
	if err != nil {
		return fmt.Errorf("encode preference keywords: %w", err)
	}

	const q = `
INSERT INTO news.user_preferences (user_id, categories, keywords, updated_at)
VALUES ($1, $2::jsonb, $3::jsonb, $4)
ON CONFLICT (user_id) DO UPDATE SET
	categories = EXCLUDED.categories,
	keywords = EXCLUDED.keywords,
	updated_at = EXCLUDED.updated_at
`
	if _, err := p.Exec(ctx, q, prefs.UserID, string(categoriesJSON), string(keywordsJSON), now); err != nil {
		return fmt.Errorf("upsert preferences user_id=%s: %w", prefs.UserID, err)
	}
	return nil
}

// GetUserEmbedding returns the cached user vector literal, if any.
func (p *Pool) GetUserEmbedding(ctx context.Context, userID string) (string, bool, error) {
	const q = `
SELECT embedding::text
FROM news.user_embeddings
WHERE user_id = $1
`
	var literal string
	err := p.QueryRow(ctx, q, userID).Scan(&literal)
	if err != nil {
		if IsNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get user embedding user_id=%s: %w", userID, err)
	}
	return literal, true, nil
}

// SaveUserEmbedding caches the computed user vector.
func (p *Pool) SaveUserEmbedding(ctx context.Context, userID, modelName, modelVersion string, dim int, literal string, now time.Time) error {
	const q = `
INSERT INTO news.user_embeddings (user_id, model_name, model_version, dim, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5::vector, $6)
ON CONFLICT (user_id) DO UPDATE SET
	model_name = EXCLUDED.model_name,
	model_version = EXCLUDED.model_version,
	dim = EXCLUDED.dim,
	embedding = EXCLUDED.embedding,
	updated_at = EXCLUDED.updated_at
`
	if _, err := p.Exec(ctx, q, userID, modelName, modelVersion, dim, literal, now); err != nil {
		return fmt.Errorf("save user embedding user_id=%s: %w", userID, err)
	}
	return nil
}

// FeedCandidates retrieves the candidate pool ordered by cosine distance to
// the user vector. Hidden topics, tombstoned topics and non-ok digests are
// excluded up front.
func (p *Pool) FeedCandidates(ctx context.Context, userID, userVectorLiteral string, limit int) ([]FeedCandidate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	g.digest_id,
	g.digest_uuid::text,
	t.topic_id,
	t.topic_uuid::text,
	t.title,
	t.category,
	g.digest_text,
	g.created_at,
	t.popularity_count,
	t.first_seen_at,
	t.last_updated_at,
	de.embedding::text
FROM news.digest_embeddings de
JOIN news.digests g ON g.digest_id = de.digest_id
JOIN news.topics t ON t.topic_id = g.topic_id
WHERE g.status = 'ok'
  AND t.merged_into IS NULL
  AND NOT EXISTS (
	SELECT 1
	FROM news.events e
	WHERE e.user_id = $2
	  AND e.event_type = 'hide'
	  AND e.topic_id = t.topic_id
)
ORDER BY de.embedding <=> $1::vector ASC
LIMIT $3
`

	rows, err := p.Query(ctx, q, userVectorLiteral, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]FeedCandidate, 0, limit)
	for rows.Next() {
		var c FeedCandidate
		if err := rows.Scan(
			&c.DigestID,
			&c.DigestUUID,
			&c.TopicID,
			&c.TopicUUID,
			&c.Title,
			&c.Category,
			&c.DigestText,
			&c.CreatedAt,
			&c.PopularityCount,
			&c.TopicFirstSeenAt,
			&c.TopicLastUpdatedAt,
			&c.EmbeddingLiteral,
		); err != nil {
			return nil, fmt.Errorf("scan feed candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed candidates: %w", err)
	}
	return candidates, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
