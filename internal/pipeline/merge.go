package pipeline

import (
	"context"
	"fmt"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/vec"
)

type MergeResult struct {
	Scanned int `json:"scanned"`
	Merged  int `json:"merged"`
}

// mergeTopic is the in-memory view of one active topic during a merge scan.
// Slice order is the stable enumeration order used for tie-breaks.
type mergeTopic struct {
	TopicID         int64
	Category        *string
	Centroid        []float64
	PopularityCount int
	MergedInto      *int64
}

type mergePair struct {
	PrimaryIdx   int
	SecondaryIdx int
}

// mergeCompatible reports whether two topic categories allow a merge. Unlike
// the assignment filter, only a genuine conflict blocks it: both categories
// set and different. An uncategorized topic can merge either way.
func mergeCompatible(left, right *string) bool {
	if left == nil || *left == "" || right == nil || *right == "" {
		return true
	}
	return *left == *right
}

// resolveMerges performs the all-pairs scan over active topics and returns
// the merges to apply. Within each pair the higher-popularity topic wins;
// ties keep the earlier-enumerated one. Topics claimed as secondary in an
// earlier pair are excluded from later pairs, which is what makes a rerun on
// the resulting state a no-op.
func resolveMerges(topics []*mergeTopic, threshold float64, dim int) []mergePair {
	var pairs []mergePair
	for i := 0; i < len(topics); i++ {
		if topics[i].MergedInto != nil || len(topics[i].Centroid) != dim {
			continue
		}
		for j := i + 1; j < len(topics); j++ {
			if topics[j].MergedInto != nil || len(topics[j].Centroid) != dim {
				continue
			}
			if !mergeCompatible(topics[i].Category, topics[j].Category) {
				continue
			}
			if vec.CosineSimilarity(topics[i].Centroid, topics[j].Centroid) < threshold {
				continue
			}

			primary, secondary := i, j
			if topics[j].PopularityCount > topics[i].PopularityCount {
				primary, secondary = j, i
			}
			topics[primary].PopularityCount += topics[secondary].PopularityCount
			topics[secondary].MergedInto = &topics[primary].TopicID
			pairs = append(pairs, mergePair{PrimaryIdx: primary, SecondaryIdx: secondary})

			if secondary == i {
				break
			}
		}
	}
	return pairs
}

// MergeTopics collapses highly similar active topics. The secondary topic is
// tombstoned, its edges repointed and its popularity folded into the
// primary. Tombstoned topics never take part in later scans, so rerunning on
// stable input merges nothing.
func (s *Service) MergeTopics(ctx context.Context) (MergeResult, error) {
	stats, err := s.withStage(ctx, "merge", func(tx db.Tx) (any, error) {
		return s.mergeTopicsTx(ctx, tx)
	})
	if err != nil {
		return MergeResult{}, err
	}
	return stats.(MergeResult), nil
}

func (s *Service) mergeTopicsTx(ctx context.Context, tx db.Tx) (MergeResult, error) {
	now := globaltime.Now()
	windowStart := now.Add(-time.Duration(s.windowDays) * 24 * time.Hour)

	const q = `
SELECT topic_id, category, centroid::text, popularity_count
FROM news.topics
WHERE merged_into IS NULL AND last_updated_at >= $1
ORDER BY topic_id ASC
`
	rows, err := tx.Query(ctx, q, windowStart)
	if err != nil {
		return MergeResult{}, fmt.Errorf("select merge candidates: %w", err)
	}

	topics := make([]*mergeTopic, 0, 64)
	for rows.Next() {
		var (
			topic  mergeTopic
			rawVec *string
		)
		if err := rows.Scan(&topic.TopicID, &topic.Category, &rawVec, &topic.PopularityCount); err != nil {
			rows.Close()
			return MergeResult{}, fmt.Errorf("scan merge candidate: %w", err)
		}
		if rawVec != nil {
			if centroid, parseErr := vec.Parse(*rawVec); parseErr == nil {
				topic.Centroid = centroid
			}
		}
		topics = append(topics, &topic)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return MergeResult{}, fmt.Errorf("iterate merge candidates: %w", err)
	}
	rows.Close()

	pairs := resolveMerges(topics, s.mergeThreshold, s.embedder.Dim())
	result := MergeResult{Scanned: len(topics), Merged: len(pairs)}

	for _, pair := range pairs {
		primary := topics[pair.PrimaryIdx]
		secondary := topics[pair.SecondaryIdx]
		if err := applyMerge(ctx, tx, primary, secondary, now); err != nil {
			return result, err
		}
		s.logger.Info().
			Int64("primary", primary.TopicID).
			Int64("secondary", secondary.TopicID).
			Msg("topics merged")
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("merged", result.Merged).
		Msg("merge stage finished")
	return result, nil
}

// applyMerge repoints the secondary's edges, folds its popularity into the
// primary and tombstones it. The secondary's centroid stays untouched for
// audit. Articles already attached to the primary keep their existing edge.
func applyMerge(ctx context.Context, tx db.Tx, primary, secondary *mergeTopic, now time.Time) error {
	const repointQ = `
UPDATE news.topic_articles ta
SET topic_id = $1
WHERE ta.topic_id = $2
  AND NOT EXISTS (
	SELECT 1 FROM news.topic_articles p
	WHERE p.topic_id = $1 AND p.article_id = ta.article_id
)
`
	if _, err := tx.Exec(ctx, repointQ, primary.TopicID, secondary.TopicID); err != nil {
		return fmt.Errorf("repoint edges %d -> %d: %w", secondary.TopicID, primary.TopicID, err)
	}

	const dropLeftoverQ = `
DELETE FROM news.topic_articles WHERE topic_id = $1
`
	if _, err := tx.Exec(ctx, dropLeftoverQ, secondary.TopicID); err != nil {
		return fmt.Errorf("drop leftover edges topic_id=%d: %w", secondary.TopicID, err)
	}

	const primaryQ = `
UPDATE news.topics
SET popularity_count = $2, last_updated_at = $3, updated_at = $3
WHERE topic_id = $1
`
	if _, err := tx.Exec(ctx, primaryQ, primary.TopicID, primary.PopularityCount, now); err != nil {
		return fmt.Errorf("update primary topic_id=%d: %w", primary.TopicID, err)
	}

	const tombstoneQ = `
UPDATE news.topics
SET merged_into = $2, updated_at = $3
WHERE topic_id = $1
`
	if _, err := tx.Exec(ctx, tombstoneQ, secondary.TopicID, primary.TopicID, now); err != nil {
		return fmt.Errorf("tombstone topic_id=%d: %w", secondary.TopicID, err)
	}
	return nil
}
