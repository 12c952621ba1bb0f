package db

import (
	"context"
	"fmt"
	"time"
)

// TopicSummary is the listing read model for topics.
type TopicSummary struct {
	TopicID         int64      `json:"-"`
	TopicUUID       string     `json:"topic_id"`
	Title           *string    `json:"title"`
	Category        *string    `json:"category"`
	PopularityCount int        `json:"popularity_count"`
	ArticleCount    int        `json:"article_count"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastUpdatedAt   time.Time  `json:"last_updated_at"`
	MergedInto      *string    `json:"merged_into,omitempty"`
	LatestDigest    *string    `json:"latest_digest,omitempty"`
	LatestDigestAt  *time.Time `json:"latest_digest_at,omitempty"`
}

// TopicArticleSummary is one member article in a topic detail response.
type TopicArticleSummary struct {
	ArticleUUID string     `json:"article_id"`
	Title       *string    `json:"title"`
	URL         string     `json:"url"`
	SourceName  string     `json:"source"`
	PublishedAt *time.Time `json:"published_at"`
	AssignedAt  time.Time  `json:"assigned_at"`
	Score       *float64   `json:"score,omitempty"`
}

// TopicDetail is the single-topic read model with member articles.
type TopicDetail struct {
	TopicSummary
	Articles []TopicArticleSummary `json:"articles"`
}

const topicSummarySelect = `
SELECT
	t.topic_id,
	t.topic_uuid::text,
	t.title,
	t.category,
	t.popularity_count,
	(SELECT count(*) FROM news.topic_articles ta WHERE ta.topic_id = t.topic_id),
	t.first_seen_at,
	t.last_updated_at,
	m.topic_uuid::text,
	g.digest_text,
	g.created_at
FROM news.topics t
LEFT JOIN news.topics m ON m.topic_id = t.merged_into
LEFT JOIN LATERAL (
	SELECT d.digest_text, d.created_at
	FROM news.digests d
	WHERE d.topic_id = t.topic_id AND d.status = 'ok'
	ORDER BY d.created_at DESC
	LIMIT 1
) g ON true
`

// ListTopics returns active topics ordered by recency of update. Tombstoned
// topics are included only when includeMerged is set.
func (p *Pool) ListTopics(ctx context.Context, limit int, includeMerged bool) ([]TopicSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := topicSummarySelect
	if !includeMerged {
		q += "WHERE t.merged_into IS NULL\n"
	}
	q += "ORDER BY t.last_updated_at DESC\nLIMIT $1"

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	topics := make([]TopicSummary, 0, limit)
	for rows.Next() {
		var t TopicSummary
		if err := rows.Scan(
			&t.TopicID,
			&t.TopicUUID,
			&t.Title,
			&t.Category,
			&t.PopularityCount,
			&t.ArticleCount,
			&t.FirstSeenAt,
			&t.LastUpdatedAt,
			&t.MergedInto,
			&t.LatestDigest,
			&t.LatestDigestAt,
		); err != nil {
			return nil, fmt.Errorf("scan topic summary: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic summaries: %w", err)
	}
	return topics, nil
}

// GetTopicDetail loads one topic by its public uuid, including member
// articles ordered newest first.
func (p *Pool) GetTopicDetail(ctx context.Context, topicUUID string) (TopicDetail, bool, error) {
	q := topicSummarySelect + "WHERE t.topic_uuid = $1::uuid"

	var detail TopicDetail
	err := p.QueryRow(ctx, q, topicUUID).Scan(
		&detail.TopicID,
		&detail.TopicUUID,
		&detail.Title,
		&detail.Category,
		&detail.PopularityCount,
		&detail.ArticleCount,
		&detail.FirstSeenAt,
		&detail.LastUpdatedAt,
		&detail.MergedInto,
		&detail.LatestDigest,
		&detail.LatestDigestAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return TopicDetail{}, false, nil
		}
		return TopicDetail{}, false, fmt.Errorf("get topic uuid=%s: %w", topicUUID, err)
	}

	const articlesQ = `
SELECT
	a.article_uuid::text,
	a.title,
	a.url,
	s.name,
	a.published_at,
	ta.assigned_at,
	ta.score
FROM news.topic_articles ta
JOIN news.articles a ON a.article_id = ta.article_id
JOIN news.sources s ON s.source_id = a.source_id
WHERE ta.topic_id = $1
ORDER BY a.published_at DESC NULLS LAST, a.article_id DESC
`
	rows, err := p.Query(ctx, articlesQ, detail.TopicID)
	if err != nil {
		return TopicDetail{}, false, fmt.Errorf("query topic articles topic_id=%d: %w", detail.TopicID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a TopicArticleSummary
		if err := rows.Scan(&a.ArticleUUID, &a.Title, &a.URL, &a.SourceName, &a.PublishedAt, &a.AssignedAt, &a.Score); err != nil {
			return TopicDetail{}, false, fmt.Errorf("scan topic article: %w", err)
		}
		detail.Articles = append(detail.Articles, a)
	}
	if err := rows.Err(); err != nil {
		return TopicDetail{}, false, fmt.Errorf("iterate topic articles: %w", err)
	}
	return detail, true, nil
}

// ResolveTopicID maps a public topic uuid to its internal id.
func (p *Pool) ResolveTopicID(ctx context.Context, topicUUID string) (int64, bool, error) {
	const q = `SELECT topic_id FROM news.topics WHERE topic_uuid = $1::uuid`
	var id int64
	err := p.QueryRow(ctx, q, topicUUID).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve topic uuid=%s: %w", topicUUID, err)
	}
	return id, true, nil
}

// ResolveDigestID maps a public digest uuid to its internal id.
func (p *Pool) ResolveDigestID(ctx context.Context, digestUUID string) (int64, bool, error) {
	const q = `SELECT digest_id FROM news.digests WHERE digest_uuid = $1::uuid`
	var id int64
	err := p.QueryRow(ctx, q, digestUUID).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve digest uuid=%s: %w", digestUUID, err)
	}
	return id, true, nil
}
