package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/currents/internal/config"
	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/urlcanon"
)

// store is the slice of the database pool the fetch task needs: the task-run
// ledger plus one transaction for the batch.
type store interface {
	StartTaskRun(ctx context.Context, stage string, startedAt time.Time) (string, error)
	FinishTaskRun(ctx context.Context, runUUID string, finishedAt time.Time, stats any, runErr error) error
	BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error)
}

type Service struct {
	pool      store
	logger    zerolog.Logger
	fetcher   FeedFetcher
	extractor FulltextExtractor
	canon     *urlcanon.Canonicalizer

	sourcesFile       string
	maxItemsPerSource int
}

type Result struct {
	SourcesOK     int `json:"sources_ok"`
	SourcesFailed int `json:"sources_failed"`
	ItemsSeen     int `json:"items_seen"`
	Inserted      int `json:"inserted"`
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"`
	FulltextOK    int `json:"fulltext_ok"`
	FulltextFail  int `json:"fulltext_fail"`
}

// storeOutcome classifies what storing one feed item did.
type storeOutcome int

const (
	storeSkipped storeOutcome = iota
	storeInserted
	storeUpdated
)

func NewService(pool *db.Pool, cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		pool:              pool,
		logger:            logger,
		fetcher:           NewRSSFetcher(cfg.FetchUserAgent, cfg.FetchTimeout),
		extractor:         NewFulltextExtractor(cfg.FetchUserAgent, cfg.FetchTimeout),
		canon:             urlcanon.New(cfg.TrackingParamsList()),
		sourcesFile:       cfg.SourcesFile,
		maxItemsPerSource: cfg.MaxItemsPerSource,
	}
}

// Run loads the sources catalog, pulls every enabled feed and upserts the
// articles inside one transaction. Feed failures of individual sources are
// logged and counted, never fatal for the run; database errors abort it.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("fetch service is not initialized")
	}

	specs, err := LoadSources(s.sourcesFile)
	if err != nil {
		return Result{}, err
	}

	runUUID, err := s.pool.StartTaskRun(ctx, "fetch", globaltime.Now())
	if err != nil {
		return Result{}, err
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
		return Result{}, err
	}

	var result Result
	for _, spec := range specs {
		if !spec.IsEnabled() {
			continue
		}
		if err := s.fetchSource(ctx, tx, spec, &result); err != nil {
			_ = tx.Rollback(ctx)
			_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
			return result, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
		return result, fmt.Errorf("commit fetch run: %w", err)
	}

	if err := s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), result, nil); err != nil {
		return result, err
	}

	s.logger.Info().
		Int("sources_ok", result.SourcesOK).
		Int("sources_failed", result.SourcesFailed).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("fetch run finished")
	return result, nil
}

// fetchSource pulls one feed and stores its items. A feed fetch failure is
// counted and swallowed; a returned error is a database fault that must
// abort the transaction.
func (s *Service) fetchSource(ctx context.Context, tx db.Tx, spec SourceSpec, result *Result) error {
	sourceID, err := s.upsertSource(ctx, tx, spec)
	if err != nil {
		return err
	}

	maxItems := spec.MaxItems
	if maxItems <= 0 {
		maxItems = s.maxItemsPerSource
	}

	items, err := s.fetcher.Fetch(ctx, spec.FeedURL, maxItems)
	if err != nil {
		result.SourcesFailed++
		s.logger.Warn().Err(err).Str("source", spec.Name).Msg("source fetch failed")
		return nil
	}

	for _, item := range items {
		result.ItemsSeen++
		outcome, err := s.storeItem(ctx, tx, sourceID, spec, item, result)
		if err != nil {
			return err
		}
		switch outcome {
		case storeInserted:
			result.Inserted++
		case storeUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	result.SourcesOK++
	return nil
}

func (s *Service) upsertSource(ctx context.Context, tx db.Tx, spec SourceSpec) (int64, error) {
	const q = `
INSERT INTO news.sources (name, feed_url, base_url, category, allow_fulltext, allow_derivatives, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (name) DO UPDATE SET
	feed_url = EXCLUDED.feed_url,
	base_url = EXCLUDED.base_url,
	category = EXCLUDED.category,
	allow_fulltext = EXCLUDED.allow_fulltext,
	allow_derivatives = EXCLUDED.allow_derivatives,
	updated_at = EXCLUDED.updated_at
RETURNING source_id
`
	var sourceID int64
	err := tx.QueryRow(ctx, q,
		spec.Name,
		spec.FeedURL,
		nullableString(spec.BaseURL),
		nullableString(strings.ToLower(spec.Category)),
		spec.AllowFulltext,
		spec.AllowDerivatives,
		globaltime.Now(),
	).Scan(&sourceID)
	if err != nil {
		return 0, fmt.Errorf("upsert source %q: %w", spec.Name, err)
	}
	return sourceID, nil
}

// storeItem upserts one feed item keyed by url. A known url with refreshed
// raw text gets that text updated so the clean stage re-processes it; a new
// url whose canonical form is already taken by another url is skipped.
func (s *Service) storeItem(ctx context.Context, tx db.Tx, sourceID int64, spec SourceSpec, item FeedItem, result *Result) (storeOutcome, error) {
	canonical := s.canon.Canonicalize(item.Link)
	now := globaltime.Now()

	const existingQ = `
SELECT article_id, COALESCE(raw_text, '') FROM news.articles WHERE url = $1
`
	var (
		articleID int64
		storedRaw string
	)
	err := tx.QueryRow(ctx, existingQ, item.Link).Scan(&articleID, &storedRaw)
	if err == nil {
		rawText := s.itemRawText(ctx, spec, item, result)
		if strings.TrimSpace(rawText) == "" || rawText == storedRaw {
			return storeSkipped, nil
		}
		const refreshQ = `
UPDATE news.articles SET raw_text = $2, fetched_at = $3, updated_at = $3 WHERE article_id = $1
`
		if _, err := tx.Exec(ctx, refreshQ, articleID, rawText, now); err != nil {
			return storeSkipped, fmt.Errorf("refresh article url=%s: %w", item.Link, err)
		}
		return storeUpdated, nil
	}
	if !db.IsNoRows(err) {
		return storeSkipped, fmt.Errorf("check article url=%s: %w", item.Link, err)
	}

	const canonicalDupQ = `
SELECT 1 FROM news.articles WHERE canonical_url = $1 AND url <> $2 LIMIT 1
`
	var one int
	err = tx.QueryRow(ctx, canonicalDupQ, canonical, item.Link).Scan(&one)
	if err == nil {
		return storeSkipped, nil
	}
	if !db.IsNoRows(err) {
		return storeSkipped, fmt.Errorf("check canonical url=%s: %w", canonical, err)
	}

	rawText := s.itemRawText(ctx, spec, item, result)

	category := strings.ToLower(strings.TrimSpace(spec.Category))
	if category == "" && len(item.Categories) > 0 {
		category = strings.ToLower(strings.TrimSpace(item.Categories[0]))
	}

	const insertQ = `
INSERT INTO news.articles (source_id, url, canonical_url, title, author, category, published_at, fetched_at, raw_text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $8, $8)
ON CONFLICT (url) DO UPDATE SET
	raw_text = EXCLUDED.raw_text,
	fetched_at = EXCLUDED.fetched_at,
	updated_at = EXCLUDED.updated_at
`
	if _, err := tx.Exec(ctx, insertQ,
		sourceID,
		item.Link,
		canonical,
		nullableString(item.Title),
		nullableString(item.Author),
		nullableString(category),
		item.PublishedAt,
		now,
		nullableString(rawText),
	); err != nil {
		return storeSkipped, fmt.Errorf("insert article url=%s: %w", item.Link, err)
	}
	return storeInserted, nil
}

// itemRawText picks the item's body: feed content, then summary, then a
// fulltext fetch when the source allows it.
func (s *Service) itemRawText(ctx context.Context, spec SourceSpec, item FeedItem, result *Result) string {
	rawText := item.Content
	if strings.TrimSpace(rawText) == "" {
		rawText = item.Summary
	}
	if strings.TrimSpace(rawText) == "" && spec.AllowFulltext {
		extracted, err := s.extractor.Extract(ctx, item.Link)
		if err != nil {
			result.FulltextFail++
			s.logger.Debug().Err(err).Str("url", item.Link).Msg("fulltext extraction failed")
			return rawText
		}
		result.FulltextOK++
		rawText = extracted
	}
	return rawText
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
