package pipeline

import (
	"context"
	"fmt"
	"time"

	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/langdetect"
	"horse.fit/currents/internal/textutil"
)

const minCleanTextChars = 40

type CleanResult struct {
	Processed    int `json:"processed"`
	Cleaned      int `json:"cleaned"`
	Unchanged    int `json:"unchanged"`
	SkippedShort int `json:"skipped_short"`
}

type rawArticle struct {
	ArticleID   int64
	RawText     string
	CleanText   *string
	ContentHash *string
}

// cleanUpdate decides whether a freshly cleaned text needs writing and
// whether that write bumps the article version. The version counts
// clean-text changes after the first fingerprinting, so the initial clean
// leaves it alone.
func cleanUpdate(storedClean, storedHash *string, newClean, newHash string) (write, bumpVersion bool) {
	if storedClean != nil && *storedClean == newClean {
		return false, false
	}
	return true, storedHash != nil && *storedHash != newHash
}

// CleanNormalize strips markup from raw article text, detects language and
// fingerprints the cleaned content. Every article with raw text is
// re-examined so a refreshed raw body gets re-cleaned; unchanged clean text
// is left alone. Articles whose cleaned text is too short are counted and
// left without a fingerprint so later stages ignore them.
func (s *Service) CleanNormalize(ctx context.Context) (CleanResult, error) {
	stats, err := s.withStage(ctx, "clean", func(tx db.Tx) (any, error) {
		return s.cleanNormalizeTx(ctx, tx)
	})
	if err != nil {
		return CleanResult{}, err
	}
	return stats.(CleanResult), nil
}

func (s *Service) cleanNormalizeTx(ctx context.Context, tx db.Tx) (CleanResult, error) {
	const selectQ = `
SELECT article_id, raw_text, clean_text, content_hash
FROM news.articles
WHERE raw_text IS NOT NULL
ORDER BY article_id ASC
`
	rows, err := tx.Query(ctx, selectQ)
	if err != nil {
		return CleanResult{}, fmt.Errorf("select pending articles: %w", err)
	}

	pending := make([]rawArticle, 0, 256)
	for rows.Next() {
		var a rawArticle
		if err := rows.Scan(&a.ArticleID, &a.RawText, &a.CleanText, &a.ContentHash); err != nil {
			rows.Close()
			return CleanResult{}, fmt.Errorf("scan pending article: %w", err)
		}
		pending = append(pending, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return CleanResult{}, fmt.Errorf("iterate pending articles: %w", err)
	}
	rows.Close()

	var result CleanResult
	now := globaltime.Now()
	for _, article := range pending {
		result.Processed++

		clean := textutil.Clean(article.RawText)
		if len(clean) < minCleanTextChars {
			write, bump := cleanUpdate(article.CleanText, article.ContentHash, clean, "")
			if !write {
				result.Unchanged++
				continue
			}
			result.SkippedShort++
			if err := markShort(ctx, tx, article.ArticleID, clean, bump, now); err != nil {
				return result, err
			}
			continue
		}

		hash := textutil.ContentHash(clean)
		write, bump := cleanUpdate(article.CleanText, article.ContentHash, clean, hash)
		if !write {
			result.Unchanged++
			continue
		}

		language := langdetect.DetectISO6391(clean)

		const updateQ = `
UPDATE news.articles
SET clean_text = $2, language = $3, content_hash = $4, version = version + $5, updated_at = $6
WHERE article_id = $1
`
		if _, err := tx.Exec(ctx, updateQ, article.ArticleID, clean, nullIfEmpty(language), hash, bumpInt(bump), now); err != nil {
			return result, fmt.Errorf("update article_id=%d: %w", article.ArticleID, err)
		}
		result.Cleaned++
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("cleaned", result.Cleaned).
		Int("unchanged", result.Unchanged).
		Int("skipped_short", result.SkippedShort).
		Msg("clean stage finished")
	return result, nil
}

// markShort records the cleaned text without a fingerprint. A null
// content_hash keeps the article out of dedup and assignment.
func markShort(ctx context.Context, tx db.Tx, articleID int64, clean string, bump bool, now time.Time) error {
	const q = `
UPDATE news.articles
SET clean_text = $2, content_hash = NULL, version = version + $3, updated_at = $4
WHERE article_id = $1
`
	if _, err := tx.Exec(ctx, q, articleID, clean, bumpInt(bump), now); err != nil {
		return fmt.Errorf("mark short article_id=%d: %w", articleID, err)
	}
	return nil
}

func bumpInt(bump bool) int {
	if bump {
		return 1
	}
	return 0
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
