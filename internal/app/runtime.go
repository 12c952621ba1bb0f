package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/currents/internal/cli"
	"horse.fit/currents/internal/config"
	"horse.fit/currents/internal/db"
	"horse.fit/currents/internal/embed"
	"horse.fit/currents/internal/logging"
	"horse.fit/currents/internal/pipeline"
	"horse.fit/currents/internal/summarize"
)

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *db.Pool
	embedder embed.Embedder
	pipe     *pipeline.Service
}

func (rt *runtime) close() {
	if rt != nil && rt.pool != nil {
		_ = rt.pool.Close()
	}
}

// parseStageFlags parses the shared flag set of a pipeline command and
// returns the timeout. ok=false carries the exit code.
func parseStageFlags(name string, args []string, defaultTimeout time.Duration) (time.Duration, bool, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", defaultTimeout, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false, 0
		}
		return 0, false, 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return *timeout, true, 0
}

// setup loads configuration, logging and the database pool.
func setup(ctx context.Context, command string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger = logger.With().Str("command", command).Logger()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	embedder := embed.NewClient(cfg)

	summarizer, err := summarize.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("initialize summarizer: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		embedder: embedder,
		pipe:     pipeline.NewService(pool, cfg, logger, embedder, summarizer),
	}, nil
}

// runStage is the common shell of every pipeline command: flags, bootstrap,
// one stage invocation, one printed summary line.
func runStage(name string, args []string, defaultTimeout time.Duration, stage func(ctx context.Context, rt *runtime) (string, error)) int {
	timeout, ok, code := parseStageFlags(name, args, defaultTimeout)
	if !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rt, err := setup(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		return 1
	}
	defer rt.close()

	summary, err := stage(ctx, rt)
	if err != nil {
		rt.logger.Error().Err(err).Msg(name + " failed")
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		return 1
	}

	fmt.Println(summary)
	return 0
}
