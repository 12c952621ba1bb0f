package app

import (
	"context"
	"fmt"
	"time"

	"horse.fit/currents/internal/fetch"
)

func runHealth(args []string) int {
	return runStage("health", args, 15*time.Second, func(ctx context.Context, rt *runtime) (string, error) {
		var one int
		if err := rt.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			return "", fmt.Errorf("database ping: %w", err)
		}
		return "health ok", nil
	})
}

func runFetch(args []string) int {
	return runStage("fetch", args, 5*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		svc := fetch.NewService(rt.pool, rt.cfg, rt.logger)
		result, err := svc.Run(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("fetch sources_ok=%d sources_failed=%d inserted=%d updated=%d skipped=%d",
			result.SourcesOK, result.SourcesFailed, result.Inserted, result.Updated, result.Skipped), nil
	})
}

func runClean(args []string) int {
	return runStage("clean", args, 2*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.CleanNormalize(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("clean processed=%d cleaned=%d unchanged=%d skipped_short=%d",
			result.Processed, result.Cleaned, result.Unchanged, result.SkippedShort), nil
	})
}

func runDedup(args []string) int {
	return runStage("dedup", args, 2*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.Deduplicate(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("dedup processed=%d exact=%d near=%d",
			result.Processed, result.ExactDuplicate, result.NearDuplicate), nil
	})
}

func runKeywords(args []string) int {
	return runStage("keywords", args, 2*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.ExtractKeywords(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("keywords processed=%d extracted=%d",
			result.Processed, result.Extracted), nil
	})
}

func runAssign(args []string) int {
	return runStage("assign", args, 10*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.AssignTopics(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("assign processed=%d assigned=%d created=%d skipped_no_embedding=%d skipped_language=%d",
			result.Processed, result.Assigned, result.Created, result.SkippedNoEmbedding, result.SkippedLanguage), nil
	})
}

func runMerge(args []string) int {
	return runStage("merge", args, 5*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.MergeTopics(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("merge scanned=%d merged=%d", result.Scanned, result.Merged), nil
	})
}

func runSummarize(args []string) int {
	return runStage("summarize", args, 15*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.GenerateDigests(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("summarize topics=%d generated=%d unchanged=%d failed=%d",
			result.Topics, result.Generated, result.Unchanged, result.Failed), nil
	})
}

func runEmbedDigests(args []string) int {
	return runStage("embed-digests", args, 10*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.EmbedDigests(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("embed-digests processed=%d embedded=%d failed=%d",
			result.Processed, result.Embedded, result.Failed), nil
	})
}

func runPopularity(args []string) int {
	return runStage("popularity", args, 2*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		result, err := rt.pipe.RecomputePopularity(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("popularity updated=%d", result.Updated), nil
	})
}

func runProcess(args []string) int {
	return runStage("process", args, 30*time.Minute, func(ctx context.Context, rt *runtime) (string, error) {
		fetchSvc := fetch.NewService(rt.pool, rt.cfg, rt.logger)
		fetchResult, err := fetchSvc.Run(ctx)
		if err != nil {
			return "", err
		}

		result, err := rt.pipe.Process(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("process fetched=%d cleaned=%d duplicates=%d assigned=%d created=%d merged=%d digests=%d embedded=%d",
			fetchResult.Inserted,
			result.Clean.Cleaned,
			result.Dedup.ExactDuplicate+result.Dedup.NearDuplicate,
			result.Assign.Assigned,
			result.Assign.Created,
			result.Merge.Merged,
			result.Digests.Generated,
			result.Embeds.Embedded), nil
	})
}
