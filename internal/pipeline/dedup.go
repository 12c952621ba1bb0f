package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/textutil"
)

type DedupResult struct {
	Processed      int `json:"processed"`
	ExactDuplicate int `json:"exact_duplicates"`
	NearDuplicate  int `json:"near_duplicates"`
}

type dedupCandidate struct {
	ArticleID   int64
	CleanText   string
	ContentHash string
	PublishedAt *time.Time
}

// effectiveTime orders candidates for dedup. Undated articles sort as "now"
// so a dated copy always wins the keeper election.
func effectiveTime(c dedupCandidate, now time.Time) time.Time {
	if c.PublishedAt != nil {
		return *c.PublishedAt
	}
	return now
}

// exactDuplicates groups candidates by content fingerprint. In each group of
// size > 1 the earliest-published article keeps, the rest map to it.
func exactDuplicates(candidates []dedupCandidate, now time.Time) map[int64]int64 {
	groups := make(map[string][]dedupCandidate)
	for _, c := range candidates {
		if c.ContentHash == "" {
			continue
		}
		groups[c.ContentHash] = append(groups[c.ContentHash], c)
	}

	marked := make(map[int64]int64)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return effectiveTime(group[i], now).Before(effectiveTime(group[j], now))
		})
		keeper := group[0]
		for _, dup := range group[1:] {
			marked[dup.ArticleID] = keeper.ArticleID
		}
	}
	return marked
}

// nearDuplicates runs the greedy single forward pass over candidates not
// already marked. Each candidate's clean-text token set is compared against
// kept representatives in list order; the first one at or above the
// threshold claims it. The order sensitivity is intentional and bounds the
// cost at O(n*k).
func nearDuplicates(candidates []dedupCandidate, alreadyMarked map[int64]int64, threshold float64) map[int64]int64 {
	type kept struct {
		articleID int64
		tokens    map[string]struct{}
	}

	marked := make(map[int64]int64)
	keptList := make([]kept, 0, len(candidates))

	for _, c := range candidates {
		if _, dup := alreadyMarked[c.ArticleID]; dup {
			continue
		}
		tokens := textutil.TokenSet(c.CleanText)
		if len(tokens) == 0 {
			continue
		}

		claimed := false
		for _, k := range keptList {
			if textutil.SetOverlap(tokens, k.tokens) >= threshold {
				marked[c.ArticleID] = k.articleID
				claimed = true
				break
			}
		}
		if !claimed {
			keptList = append(keptList, kept{articleID: c.ArticleID, tokens: tokens})
		}
	}
	return marked
}

// Deduplicate marks exact and near duplicates within the current batch of
// fingerprinted, not-yet-deduplicated articles. Near-duplicate detection
// only sees this batch, not the historical corpus.
func (s *Service) Deduplicate(ctx context.Context) (DedupResult, error) {
	stats, err := s.withStage(ctx, "dedup", func(tx db.Tx) (any, error) {
		return s.deduplicateTx(ctx, tx)
	})
	if err != nil {
		return DedupResult{}, err
	}
	return stats.(DedupResult), nil
}

func (s *Service) deduplicateTx(ctx context.Context, tx db.Tx) (DedupResult, error) {
	const selectQ = `
SELECT a.article_id, COALESCE(a.clean_text, ''), a.content_hash, a.published_at
FROM news.articles a
WHERE a.content_hash IS NOT NULL
  AND a.duplicate_of IS NULL
  AND NOT EXISTS (SELECT 1 FROM news.topic_articles ta WHERE ta.article_id = a.article_id)
ORDER BY a.published_at ASC NULLS LAST, a.article_id ASC
`
	rows, err := tx.Query(ctx, selectQ)
	if err != nil {
		return DedupResult{}, fmt.Errorf("select dedup candidates: %w", err)
	}

	candidates := make([]dedupCandidate, 0, 256)
	for rows.Next() {
		var c dedupCandidate
		if err := rows.Scan(&c.ArticleID, &c.CleanText, &c.ContentHash, &c.PublishedAt); err != nil {
			rows.Close()
			return DedupResult{}, fmt.Errorf("scan dedup candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return DedupResult{}, fmt.Errorf("iterate dedup candidates: %w", err)
	}
	rows.Close()

	now := globaltime.Now()
	exact := exactDuplicates(candidates, now)
	near := nearDuplicates(candidates, exact, s.nearDupThreshold)

	result := DedupResult{
		Processed:      len(candidates),
		ExactDuplicate: len(exact),
		NearDuplicate:  len(near),
	}

	for articleID, keeperID := range exact {
		if err := markDuplicate(ctx, tx, articleID, keeperID, now); err != nil {
			return result, err
		}
	}
	for articleID, keeperID := range near {
		if err := markDuplicate(ctx, tx, articleID, keeperID, now); err != nil {
			return result, err
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("exact", result.ExactDuplicate).
		Int("near", result.NearDuplicate).
		Msg("dedup stage finished")
	return result, nil
}

func markDuplicate(ctx context.Context, tx db.Tx, articleID, keeperID int64, now time.Time) error {
	const q = `
UPDATE news.articles SET duplicate_of = $2, updated_at = $3 WHERE article_id = $1
`
	if _, err := tx.Exec(ctx, q, articleID, keeperID, now); err != nil {
		return fmt.Errorf("mark duplicate article_id=%d: %w", articleID, err)
	}
	return nil
}
