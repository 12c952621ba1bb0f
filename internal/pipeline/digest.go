package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/summarize"
)

type DigestResult struct {
	Topics    int `json:"topics"`
	Generated int `json:"generated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// topicFingerprint hashes the member-article fingerprints, sorted so any
// permutation of the same set yields the same value.
func topicFingerprint(articleHashes []string) string {
	sorted := append([]string(nil), articleHashes...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

// GenerateDigests writes one digest per active topic whose membership
// changed since the last digest. Summarizer failures skip the topic and are
// counted, never fatal.
func (s *Service) GenerateDigests(ctx context.Context) (DigestResult, error) {
	stats, err := s.withStage(ctx, "digests", func(tx db.Tx) (any, error) {
		return s.generateDigestsTx(ctx, tx)
	})
	if err != nil {
		return DigestResult{}, err
	}
	return stats.(DigestResult), nil
}

type digestTopic struct {
	TopicID int64
	Title   string
}

func (s *Service) generateDigestsTx(ctx context.Context, tx db.Tx) (DigestResult, error) {
	now := globaltime.Now()
	windowStart := now.Add(-time.Duration(s.windowDays) * 24 * time.Hour)

	const topicsQ = `
SELECT t.topic_id, COALESCE(t.title, '')
FROM news.topics t
WHERE t.merged_into IS NULL
  AND t.last_updated_at >= $1
  AND EXISTS (SELECT 1 FROM news.topic_articles ta WHERE ta.topic_id = t.topic_id)
ORDER BY t.topic_id ASC
`
	rows, err := tx.Query(ctx, topicsQ, windowStart)
	if err != nil {
		return DigestResult{}, fmt.Errorf("select digest topics: %w", err)
	}

	topics := make([]digestTopic, 0, 64)
	for rows.Next() {
		var t digestTopic
		if err := rows.Scan(&t.TopicID, &t.Title); err != nil {
			rows.Close()
			return DigestResult{}, fmt.Errorf("scan digest topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return DigestResult{}, fmt.Errorf("iterate digest topics: %w", err)
	}
	rows.Close()

	var result DigestResult
	for _, topic := range topics {
		result.Topics++

		hashes, articles, err := loadDigestInputs(ctx, tx, topic.TopicID)
		if err != nil {
			return result, err
		}
		if len(hashes) == 0 {
			continue
		}
		fingerprint := topicFingerprint(hashes)

		const existsQ = `
SELECT 1 FROM news.digests WHERE topic_id = $1 AND content_hash = $2 LIMIT 1
`
		var one int
		err = tx.QueryRow(ctx, existsQ, topic.TopicID, fingerprint).Scan(&one)
		if err == nil {
			result.Unchanged++
			continue
		}
		if !db.IsNoRows(err) {
			return result, fmt.Errorf("check digest topic_id=%d: %w", topic.TopicID, err)
		}

		text, err := s.summarizer.Summarize(ctx, topic.Title, articles)
		if err != nil {
			result.Failed++
			s.logger.Warn().Err(err).Int64("topic_id", topic.TopicID).Msg("digest generation failed")
			continue
		}

		const insertQ = `
INSERT INTO news.digests (topic_id, digest_text, content_hash, llm_model, prompt_version, status, created_at)
VALUES ($1, $2, $3, $4, $5, 'ok', $6)
ON CONFLICT (topic_id, content_hash) DO NOTHING
`
		if _, err := tx.Exec(ctx, insertQ, topic.TopicID, text, fingerprint, s.summarizer.Model(), summarize.PromptVersion, now); err != nil {
			return result, fmt.Errorf("insert digest topic_id=%d: %w", topic.TopicID, err)
		}
		result.Generated++
	}

	s.logger.Info().
		Int("topics", result.Topics).
		Int("generated", result.Generated).
		Int("unchanged", result.Unchanged).
		Int("failed", result.Failed).
		Msg("digest stage finished")
	return result, nil
}

func loadDigestInputs(ctx context.Context, tx db.Tx, topicID int64) ([]string, []summarize.ArticleInput, error) {
	const q = `
SELECT a.content_hash, COALESCE(a.title, ''), COALESCE(a.clean_text, '')
FROM news.topic_articles ta
JOIN news.articles a ON a.article_id = ta.article_id
WHERE ta.topic_id = $1 AND a.content_hash IS NOT NULL
ORDER BY a.published_at DESC NULLS LAST, a.article_id DESC
`
	rows, err := tx.Query(ctx, q, topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("select digest inputs topic_id=%d: %w", topicID, err)
	}
	defer rows.Close()

	var (
		hashes   []string
		articles []summarize.ArticleInput
	)
	for rows.Next() {
		var (
			hash    string
			article summarize.ArticleInput
		)
		if err := rows.Scan(&hash, &article.Title, &article.Text); err != nil {
			return nil, nil, fmt.Errorf("scan digest input: %w", err)
		}
		hashes = append(hashes, hash)
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate digest inputs: %w", err)
	}
	return hashes, articles, nil
}
