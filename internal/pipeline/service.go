// Package pipeline implements the batch stages that turn raw fetched
// articles into deduplicated, topic-clustered, digest-ready content.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/currents/internal/config"
	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/embed"
	"horse.fit/currents/internal/globaltime"
	"horse.fit/currents/internal/summarize"
)

type Service struct {
	pool       *db.Pool
	logger     zerolog.Logger
	embedder   embed.Embedder
	summarizer summarize.Summarizer

	targetLanguage      string
	similarityThreshold float64
	mergeThreshold      float64
	windowDays          int
	nearDupThreshold    float64
}

func NewService(pool *db.Pool, cfg *config.Config, logger zerolog.Logger, embedder embed.Embedder, summarizer summarize.Summarizer) *Service {
	return &Service{
		pool:                pool,
		logger:              logger,
		embedder:            embedder,
		summarizer:          summarizer,
		targetLanguage:      cfg.TargetLanguage,
		similarityThreshold: cfg.TopicSimilarityThreshold,
		mergeThreshold:      cfg.TopicMergeThreshold,
		windowDays:          cfg.TopicWindowDays,
		nearDupThreshold:    cfg.DedupNearThreshold,
	}
}

// withStage wraps one batch stage in a task-run ledger row and a single
// transaction. The ledger row itself lives outside the transaction so a
// failed stage still leaves an audit trail.
func (s *Service) withStage(ctx context.Context, stage string, fn func(tx db.Tx) (any, error)) (any, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("pipeline service is not initialized")
	}

	runUUID, err := s.pool.StartTaskRun(ctx, stage, globaltime.Now())
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
		return nil, err
	}

	stats, err := fn(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
		return nil, fmt.Errorf("stage %s: %w", stage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), nil, err)
		return nil, fmt.Errorf("stage %s commit: %w", stage, err)
	}

	if err := s.pool.FinishTaskRun(ctx, runUUID, globaltime.Now(), stats, nil); err != nil {
		return stats, err
	}
	return stats, nil
}

// ProcessResult aggregates the per-stage stats of one full pipeline run.
type ProcessResult struct {
	Clean      CleanResult      `json:"clean"`
	Dedup      DedupResult      `json:"dedup"`
	Keywords   KeywordResult    `json:"keywords"`
	Assign     AssignResult     `json:"assign"`
	Merge      MergeResult      `json:"merge"`
	Digests    DigestResult     `json:"digests"`
	Embeds     EmbedResult      `json:"embeds"`
	Popularity PopularityResult `json:"popularity"`
}

// Process runs every stage in dependency order, stopping on the first
// failure.
func (s *Service) Process(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	var err error

	if result.Clean, err = s.CleanNormalize(ctx); err != nil {
		return result, err
	}
	if result.Dedup, err = s.Deduplicate(ctx); err != nil {
		return result, err
	}
	if result.Keywords, err = s.ExtractKeywords(ctx); err != nil {
		return result, err
	}
	if result.Assign, err = s.AssignTopics(ctx); err != nil {
		return result, err
	}
	if result.Merge, err = s.MergeTopics(ctx); err != nil {
		return result, err
	}
	if result.Digests, err = s.GenerateDigests(ctx); err != nil {
		return result, err
	}
	if result.Embeds, err = s.EmbedDigests(ctx); err != nil {
		return result, err
	}
	if result.Popularity, err = s.RecomputePopularity(ctx); err != nil {
		return result, err
	}
	return result, nil
}
