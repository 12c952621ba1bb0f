package pipeline

import (
	"context"
	"fmt"
	"sort"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/textutil"
)

const (
	keywordMethod      = "freq"
	keywordsPerArticle = 8
	minKeywordLength   = 3
)

type KeywordResult struct {
	Processed int `json:"processed"`
	Extracted int `json:"extracted"`
}

type rankedKeyword struct {
	Keyword string
	Score   float64
}

var keywordStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "this": {},
	"from": {}, "have": {}, "has": {}, "are": {}, "was": {}, "were": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "been": {}, "being": {},
	"its": {}, "his": {}, "her": {}, "their": {}, "they": {}, "them": {},
	"you": {}, "your": {}, "who": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "about": {}, "after": {}, "before": {},
	"over": {}, "under": {}, "into": {}, "more": {}, "most": {}, "some": {},
	"than": {}, "then": {}, "there": {}, "here": {}, "also": {}, "just": {},
	"not": {}, "but": {}, "had": {}, "she": {}, "him": {}, "all": {},
	"can": {}, "out": {}, "one": {}, "two": {}, "new": {}, "said": {},
	"says": {}, "say": {}, "year": {}, "years": {}, "day": {}, "days": {},
}

// rankKeywords scores tokens by frequency, breaking ties by first position
// in the text so earlier terms win.
func rankKeywords(text string, limit int) []rankedKeyword {
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]int)
	firstPos := make(map[string]int)
	total := 0
	for i, token := range tokens {
		if len(token) < minKeywordLength {
			continue
		}
		if _, stop := keywordStopwords[token]; stop {
			continue
		}
		if _, seen := counts[token]; !seen {
			firstPos[token] = i
		}
		counts[token]++
		total++
	}
	if total == 0 {
		return nil
	}

	ranked := make([]rankedKeyword, 0, len(counts))
	for token, count := range counts {
		ranked = append(ranked, rankedKeyword{Keyword: token, Score: float64(count) / float64(total)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return firstPos[ranked[i].Keyword] < firstPos[ranked[j].Keyword]
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ExtractKeywords derives frequency-ranked keywords for fingerprinted,
// non-duplicate articles that have none yet.
func (s *Service) ExtractKeywords(ctx context.Context) (KeywordResult, error) {
	stats, err := s.withStage(ctx, "keywords", func(tx db.Tx) (any, error) {
		return s.extractKeywordsTx(ctx, tx)
	})
	if err != nil {
		return KeywordResult{}, err
	}
	return stats.(KeywordResult), nil
}

func (s *Service) extractKeywordsTx(ctx context.Context, tx db.Tx) (KeywordResult, error) {
	const selectQ = `
SELECT a.article_id, COALESCE(a.title, '') || ' ' || a.clean_text
FROM news.articles a
WHERE a.content_hash IS NOT NULL
  AND a.duplicate_of IS NULL
  AND NOT EXISTS (
	SELECT 1 FROM news.article_keywords k
	WHERE k.article_id = a.article_id AND k.method = $1
)
ORDER BY a.article_id ASC
`
	rows, err := tx.Query(ctx, selectQ, keywordMethod)
	if err != nil {
		return KeywordResult{}, fmt.Errorf("select keyword candidates: %w", err)
	}

	type pendingArticle struct {
		ArticleID int64
		Text      string
	}
	pending := make([]pendingArticle, 0, 256)
	for rows.Next() {
		var p pendingArticle
		if err := rows.Scan(&p.ArticleID, &p.Text); err != nil {
			rows.Close()
			return KeywordResult{}, fmt.Errorf("scan keyword candidate: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return KeywordResult{}, fmt.Errorf("iterate keyword candidates: %w", err)
	}
	rows.Close()

	const insertQ = `
INSERT INTO news.article_keywords (article_id, keyword, method, score, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (article_id, keyword, method) DO UPDATE SET score = EXCLUDED.score
`

	var result KeywordResult
	now := globaltime.Now()
	for _, article := range pending {
		result.Processed++
		for _, kw := range rankKeywords(article.Text, keywordsPerArticle) {
			if _, err := tx.Exec(ctx, insertQ, article.ArticleID, kw.Keyword, keywordMethod, kw.Score, now); err != nil {
				return result, fmt.Errorf("insert keyword article_id=%d: %w", article.ArticleID, err)
			}
			result.Extracted++
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("extracted", result.Extracted).
		Msg("keyword stage finished")
	return result, nil
}
