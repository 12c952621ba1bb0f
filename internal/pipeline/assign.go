package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/textutil"
	"horse.fit/currents/internal/vec"
)

const embedBatchSize = 32

type AssignResult struct {
	Processed          int `json:"processed"`
	Assigned           int `json:"assigned"`
	Created            int `json:"created"`
	SkippedLanguage    int `json:"skipped_language"`
	SkippedNoEmbedding int `json:"skipped_no_embedding"`
}

// topicState is the in-memory view of an active topic during one assignment
// run. Slice order is the stable enumeration order used for tie-breaks.
type topicState struct {
	TopicID      int64
	Category     *string
	Centroid     []float64
	ArticleCount int
	added        int
	dirty        bool
}

// newAssignments is the number of articles absorbed during this run, used to
// bump the stored popularity counter.
func (t *topicState) newAssignments() int { return t.added }

type assignCandidate struct {
	ArticleID int64
	Title     string
	CleanText string
	Category  *string
	Embedding []float64
}

// keyword seed terms mapped to category labels, used when an article carries
// no category of its own.
var categoryHints = map[string]string{
	"election":     "politics",
	"senate":       "politics",
	"parliament":   "politics",
	"minister":     "politics",
	"startup":      "tech",
	"software":     "tech",
	"chip":         "tech",
	"robot":        "tech",
	"market":       "business",
	"stocks":       "business",
	"economy":      "business",
	"inflation":    "business",
	"climate":      "science",
	"research":     "science",
	"spacecraft":   "science",
	"vaccine":      "health",
	"cancer":       "health",
	"hospital":     "health",
	"football":     "sports",
	"olympics":     "sports",
	"championship": "sports",
	"film":         "entertainment",
	"music":        "entertainment",
}

// categoryCompatible is the hard filter: both unset, or both set and equal.
func categoryCompatible(a, b *string) bool {
	aSet := a != nil && *a != ""
	bSet := b != nil && *b != ""
	if !aSet && !bSet {
		return true
	}
	if aSet != bSet {
		return false
	}
	return *a == *b
}

// shouldAssign is the acceptance rule, inclusive at the threshold.
func shouldAssign(similarity, threshold float64) bool {
	return similarity >= threshold
}

// bestTopic scans active topics in enumeration order and returns the index
// of the most similar compatible topic. Equal maxima keep the first topic
// encountered. Topics without a usable centroid are skipped.
func bestTopic(topics []*topicState, candidate assignCandidate, dim int) (int, float64, bool) {
	bestIdx := -1
	bestSim := 0.0
	for i, topic := range topics {
		if len(topic.Centroid) != dim {
			continue
		}
		if !categoryCompatible(topic.Category, candidate.Category) {
			continue
		}
		sim := vec.CosineSimilarity(topic.Centroid, candidate.Embedding)
		if bestIdx == -1 || sim > bestSim {
			bestIdx = i
			bestSim = sim
		}
	}
	if bestIdx == -1 {
		return 0, 0, false
	}
	return bestIdx, bestSim, true
}

// absorb folds an article embedding into the topic as an incremental running
// mean using the post-increment count.
func (t *topicState) absorb(embedding []float64) {
	t.ArticleCount++
	t.added++
	t.dirty = true
	if t.ArticleCount == 1 || len(t.Centroid) != len(embedding) {
		t.Centroid = append([]float64(nil), embedding...)
		return
	}
	n := float64(t.ArticleCount)
	for i := range t.Centroid {
		t.Centroid[i] = (t.Centroid[i]*(n-1) + embedding[i]) / n
	}
}

// inferCategory picks the article's own category when present, otherwise the
// first hint term found in its title.
func inferCategory(candidate assignCandidate) *string {
	if candidate.Category != nil && *candidate.Category != "" {
		return candidate.Category
	}
	for _, token := range textutil.Tokenize(candidate.Title) {
		if category, ok := categoryHints[token]; ok {
			return &category
		}
	}
	return nil
}

// topicTitle defaults to the article title, falling back to the first
// sentence of its text.
func topicTitle(candidate assignCandidate) string {
	if title := strings.TrimSpace(candidate.Title); title != "" {
		return title
	}
	return textutil.FirstSentence(candidate.CleanText)
}

// AssignTopics clusters eligible articles onto active topics by centroid
// cosine similarity, creating new topics below the threshold.
func (s *Service) AssignTopics(ctx context.Context) (AssignResult, error) {
	stats, err := s.withStage(ctx, "assign", func(tx db.Tx) (any, error) {
		return s.assignTopicsTx(ctx, tx)
	})
	if err != nil {
		return AssignResult{}, err
	}
	return stats.(AssignResult), nil
}

func (s *Service) assignTopicsTx(ctx context.Context, tx db.Tx) (AssignResult, error) {
	now := globaltime.Now()
	windowStart := now.Add(-time.Duration(s.windowDays) * 24 * time.Hour)

	topics, err := loadActiveTopics(ctx, tx, windowStart)
	if err != nil {
		return AssignResult{}, err
	}

	candidates, skippedLanguage, err := s.loadAssignCandidates(ctx, tx)
	if err != nil {
		return AssignResult{}, err
	}

	result := AssignResult{SkippedLanguage: skippedLanguage}
	if err := s.embedCandidates(ctx, candidates, &result); err != nil {
		return result, err
	}

	dim := s.embedder.Dim()
	for i := range candidates {
		candidate := candidates[i]
		if candidate.Embedding == nil {
			continue
		}
		result.Processed++

		idx, sim, found := bestTopic(topics, candidate, dim)
		if found && shouldAssign(sim, s.similarityThreshold) {
			topic := topics[idx]
			topic.absorb(candidate.Embedding)
			if err := insertTopicEdge(ctx, tx, topic.TopicID, candidate.ArticleID, &sim, now); err != nil {
				return result, err
			}
			result.Assigned++
			continue
		}

		topic, err := createTopic(ctx, tx, candidate, now)
		if err != nil {
			return result, err
		}
		topics = append(topics, topic)
		if err := insertTopicEdge(ctx, tx, topic.TopicID, candidate.ArticleID, nil, now); err != nil {
			return result, err
		}
		result.Created++
	}

	for _, topic := range topics {
		if !topic.dirty {
			continue
		}
		if err := persistTopicState(ctx, tx, topic, now); err != nil {
			return result, err
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("assigned", result.Assigned).
		Int("created", result.Created).
		Int("skipped_no_embedding", result.SkippedNoEmbedding).
		Msg("assign stage finished")
	return result, nil
}

func loadActiveTopics(ctx context.Context, tx db.Tx, windowStart time.Time) ([]*topicState, error) {
	const q = `
SELECT t.topic_id, t.category, t.centroid::text,
	(SELECT count(*) FROM news.topic_articles ta WHERE ta.topic_id = t.topic_id)
FROM news.topics t
WHERE t.merged_into IS NULL AND t.last_updated_at >= $1
ORDER BY t.topic_id ASC
`
	rows, err := tx.Query(ctx, q, windowStart)
	if err != nil {
		return nil, fmt.Errorf("select active topics: %w", err)
	}
	defer rows.Close()

	topics := make([]*topicState, 0, 64)
	for rows.Next() {
		var (
			topic  topicState
			rawVec *string
		)
		if err := rows.Scan(&topic.TopicID, &topic.Category, &rawVec, &topic.ArticleCount); err != nil {
			return nil, fmt.Errorf("scan active topic: %w", err)
		}
		if rawVec != nil {
			centroid, parseErr := vec.Parse(*rawVec)
			if parseErr == nil {
				topic.Centroid = centroid
			}
		}
		topics = append(topics, &topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active topics: %w", err)
	}
	return topics, nil
}

func (s *Service) loadAssignCandidates(ctx context.Context, tx db.Tx) ([]assignCandidate, int, error) {
	const q = `
SELECT a.article_id, COALESCE(a.title, ''), a.clean_text, a.category, COALESCE(a.language, '')
FROM news.articles a
WHERE a.content_hash IS NOT NULL
  AND a.duplicate_of IS NULL
  AND a.clean_text IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM news.topic_articles ta WHERE ta.article_id = a.article_id)
ORDER BY a.published_at ASC NULLS LAST, a.article_id ASC
`
	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("select assignment candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]assignCandidate, 0, 256)
	skippedLanguage := 0
	for rows.Next() {
		var (
			c        assignCandidate
			language string
		)
		if err := rows.Scan(&c.ArticleID, &c.Title, &c.CleanText, &c.Category, &language); err != nil {
			return nil, 0, fmt.Errorf("scan assignment candidate: %w", err)
		}
		if language != "" && !strings.EqualFold(language, s.targetLanguage) {
			skippedLanguage++
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assignment candidates: %w", err)
	}
	return candidates, skippedLanguage, nil
}

// embedCandidates fills embeddings in batches. A failed batch leaves its
// articles without embeddings; they are counted and retried next run.
func (s *Service) embedCandidates(ctx context.Context, candidates []assignCandidate, result *AssignResult) error {
	for start := 0; start < len(candidates); start += embedBatchSize {
		end := min(start+embedBatchSize, len(candidates))
		batch := candidates[start:end]

		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, embeddingInput(c))
		}

		vectors, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			result.SkippedNoEmbedding += len(batch)
			s.logger.Warn().Err(err).Int("batch", len(batch)).Msg("embedding batch failed")
			continue
		}
		for i := range batch {
			candidates[start+i].Embedding = vec.Normalize(vectors[i])
		}
	}
	return nil
}

func embeddingInput(c assignCandidate) string {
	const maxEmbedChars = 2000
	text := strings.TrimSpace(c.Title + "\n" + c.CleanText)
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	return text
}

func insertTopicEdge(ctx context.Context, tx db.Tx, topicID, articleID int64, score *float64, now time.Time) error {
	const q = `
INSERT INTO news.topic_articles (topic_id, article_id, score, assigned_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (article_id) DO NOTHING
`
	if _, err := tx.Exec(ctx, q, topicID, articleID, score, now); err != nil {
		return fmt.Errorf("insert topic edge topic_id=%d article_id=%d: %w", topicID, articleID, err)
	}
	return nil
}

func createTopic(ctx context.Context, tx db.Tx, candidate assignCandidate, now time.Time) (*topicState, error) {
	literal, err := vec.Literal(candidate.Embedding)
	if err != nil {
		return nil, fmt.Errorf("encode new topic centroid: %w", err)
	}

	category := inferCategory(candidate)
	title := topicTitle(candidate)

	const q = `
INSERT INTO news.topics (title, category, first_seen_at, last_updated_at, popularity_count, centroid, created_at, updated_at)
VALUES ($1, $2, $3, $3, 1, $4::vector, $3, $3)
RETURNING topic_id
`
	var topicID int64
	if err := tx.QueryRow(ctx, q, nullIfEmpty(title), category, now, literal).Scan(&topicID); err != nil {
		return nil, fmt.Errorf("create topic: %w", err)
	}

	return &topicState{
		TopicID:      topicID,
		Category:     category,
		Centroid:     append([]float64(nil), candidate.Embedding...),
		ArticleCount: 1,
	}, nil
}

func persistTopicState(ctx context.Context, tx db.Tx, topic *topicState, now time.Time) error {
	literal, err := vec.Literal(topic.Centroid)
	if err != nil {
		return fmt.Errorf("encode centroid topic_id=%d: %w", topic.TopicID, err)
	}

	const q = `
UPDATE news.topics
SET centroid = $2::vector,
	popularity_count = popularity_count + $3,
	last_updated_at = $4,
	updated_at = $4
WHERE topic_id = $1
`
	if _, err := tx.Exec(ctx, q, topic.TopicID, literal, topic.newAssignments(), now); err != nil {
		return fmt.Errorf("update topic_id=%d: %w", topic.TopicID, err)
	}
	return nil
}
