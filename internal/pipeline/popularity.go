package pipeline

import (
	"context"
	"fmt"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
)

type PopularityResult struct {
	Updated int `json:"updated"`
}

// recomputePopularityQuery re-derives each active topic's popularity as the
// count of its assignment edges. popularity_count means articles ever
// assigned; engagement events never feed it.
const recomputePopularityQuery = `
UPDATE news.topics t
SET popularity_count = derived.total, updated_at = $1
FROM (
	SELECT t2.topic_id,
		(SELECT count(*) FROM news.topic_articles ta WHERE ta.topic_id = t2.topic_id) AS total
	FROM news.topics t2
	WHERE t2.merged_into IS NULL
) derived
WHERE t.topic_id = derived.topic_id
  AND t.popularity_count IS DISTINCT FROM derived.total
`

// RecomputePopularity re-derives popularity counters for active topics from
// their assignment-edge counts, correcting any drift left by partial runs.
func (s *Service) RecomputePopularity(ctx context.Context) (PopularityResult, error) {
	stats, err := s.withStage(ctx, "popularity", func(tx db.Tx) (any, error) {
		return s.recomputePopularityTx(ctx, tx)
	})
	if err != nil {
		return PopularityResult{}, err
	}
	return stats.(PopularityResult), nil
}

func (s *Service) recomputePopularityTx(ctx context.Context, tx db.Tx) (PopularityResult, error) {
	tag, err := tx.Exec(ctx, recomputePopularityQuery, globaltime.Now())
	if err != nil {
		return PopularityResult{}, fmt.Errorf("recompute popularity: %w", err)
	}

	result := PopularityResult{Updated: int(tag.RowsAffected())}
	s.logger.Info().Int("updated", result.Updated).Msg("popularity stage finished")
	return result, nil
}
