// Package app wires configuration, database and services behind the CLI
// commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "clean":
		return runClean(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "keywords":
		return runKeywords(args[1:])
	case "assign":
		return runAssign(args[1:])
	case "merge":
		return runMerge(args[1:])
	case "summarize":
		return runSummarize(args[1:])
	case "embed-digests":
		return runEmbedDigests(args[1:])
	case "popularity":
		return runPopularity(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "feed":
		return runFeed(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "currents CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  currents <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health         Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  fetch          Pull configured RSS feeds and store raw articles")
	fmt.Fprintln(os.Stderr, "  clean          Strip markup, detect language and fingerprint articles")
	fmt.Fprintln(os.Stderr, "  dedup          Mark exact and near duplicates in the current batch")
	fmt.Fprintln(os.Stderr, "  keywords       Extract frequency-ranked keywords per article")
	fmt.Fprintln(os.Stderr, "  assign         Cluster articles onto topics by centroid similarity")
	fmt.Fprintln(os.Stderr, "  merge          Merge highly similar active topics")
	fmt.Fprintln(os.Stderr, "  summarize      Generate topic digests for changed topics")
	fmt.Fprintln(os.Stderr, "  embed-digests  Vectorize digests for feed retrieval")
	fmt.Fprintln(os.Stderr, "  popularity     Recompute topic popularity counters")
	fmt.Fprintln(os.Stderr, "  process        Run every pipeline stage in order")
	fmt.Fprintln(os.Stderr, "  run-once       Alias for process")
	fmt.Fprintln(os.Stderr, "  feed           Print the ranked feed for one user")
	fmt.Fprintln(os.Stderr, "  serve          Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"currents <command> -h\" for command-specific flags.")
}
