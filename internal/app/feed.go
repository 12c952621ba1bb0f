package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/currents/internal/cli"
	"horse.fit/currents/internal/recommend"
)

func runFeed(args []string) int {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	userID := fs.String("user", "", "User identifier to build the feed for")
	limit := fs.Int("limit", 0, "Number of items (0 uses the configured default)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "feed: -user is required")
		fs.Usage()
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := setup(ctx, "feed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "feed failed: %v\n", err)
		return 1
	}
	defer rt.close()

	feedSvc := newFeedService(rt)

	items, err := feedSvc.GetFeed(ctx, *userID, *limit)
	if err != nil {
		rt.logger.Error().Err(err).Str("user_id", *userID).Msg("feed failed")
		fmt.Fprintf(os.Stderr, "feed failed: %v\n", err)
		return 1
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(items); err != nil {
		fmt.Fprintf(os.Stderr, "feed failed: %v\n", err)
		return 1
	}
	return 0
}

// newFeedService builds the scorer handle and feed service shared by the
// feed and serve commands. A missing ranker artifact is not fatal, the
// service falls back to the heuristic score.
func newFeedService(rt *runtime) *recommend.FeedService {
	scorer := recommend.NewScorerContext(rt.cfg.RankerModelPath, rt.cfg.RankerMetaPath, rt.logger)
	if err := scorer.Reload(); err != nil {
		rt.logger.Warn().Err(err).Msg("ranker model unavailable, using heuristic scoring")
	}
	return recommend.NewFeedService(rt.pool, rt.cfg, rt.logger, rt.embedder, scorer)
}
