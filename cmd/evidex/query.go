package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/evidex/evidex/internal/config"
	"github.com/evidex/evidex/internal/query"
	"github.com/evidex/evidex/internal/sink"
)

// =============================================================================
// Query Command
// =============================================================================

func runQuery(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	expr := fs.String("e", "", "Query expression to evaluate (required)")
	sinkPath := fs.String("sink", "", "Output path (\"-\" for stdout, default: config query.sink_path)")
	batchSize := fs.Int("batch-size", 0, "Matches accumulated per chunk (0 = config default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: query -e <expression> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates a boolean query expression against the archive and indexes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  -e <expr>           Query expression (required)\n")
		fmt.Fprintf(os.Stderr, "  --sink <path>       Output path (\"-\" for stdout, default: %s)\n", cfg.Query.SinkPath)
		fmt.Fprintf(os.Stderr, "  --batch-size <n>    Matches accumulated per chunk (default: %d)\n\n", cfg.Query.BatchSize)
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s query -e 'name == \"dns_query\" && @0 == \"a.com\"'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s query -e '#sensitive == true' --sink results.ndjson\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if *expr == "" {
		fmt.Fprintf(os.Stderr, "Error: -e <expression> is required\n\n")
		fs.Usage()
		os.Exit(2)
	}

	if *sinkPath != "" {
		cfg.Query.SinkPath = *sinkPath
	}
	if *batchSize > 0 {
		cfg.Query.BatchSize = *batchSize
	}

	cmdQuery(cfg, *expr)
}

func cmdQuery(cfg *config.Config, expression string) {
	arc, err := openArchive(cfg)
	if err != nil {
		printErrorAndExit("Failed to open archive: %v", err)
	}
	defer arc.Close()

	idx, err := openIndexPair(cfg)
	if err != nil {
		printErrorAndExit("Failed to open indexes: %v", err)
	}
	defer idx.Shutdown()
	if err := idx.Scan(); err != nil {
		printErrorAndExit("Failed to scan indexes: %v", err)
	}

	sinkPath := cfg.Query.SinkPath
	if sinkPath == "-" || sinkPath == "" {
		sinkPath = "/dev/stdout"
	}
	fileSink, err := sink.NewFile(sinkPath)
	if err != nil {
		printErrorAndExit("Failed to open sink %s: %v", sinkPath, err)
	}
	var s query.SinkRef = fileSink
	if sinkPath != "/dev/stdout" {
		defer fmt.Fprintf(os.Stderr, "Results written to %s\n", sinkPath)
	}

	q, err := query.New(arc, idx, s, expression)
	if err != nil {
		printErrorAndExit("Invalid query: %v", err)
	}
	q.SetBatchSize(cfg.Query.BatchSize)

	fmt.Fprintf(os.Stderr, "Evaluating: %s\n", expression)
	startTime := time.Now()

	if err := q.Start(); err != nil {
		printErrorAndExit("Failed to start query: %v", err)
	}

	for {
		more, err := q.NextChunk()
		if err != nil {
			printErrorAndExit("Query failed: %v", err)
		}
		if !more {
			break
		}
	}

	if err := q.Shutdown(); err != nil {
		printErrorAndExit("Failed to shut down query: %v", err)
	}

	elapsed := time.Since(startTime)
	stats := q.Statistics()

	fmt.Fprintf(os.Stderr, "\n=== Query Complete ===\n\n")
	fmt.Fprintf(os.Stderr, "  Events scanned:      %d\n", stats.EventsScanned)
	fmt.Fprintf(os.Stderr, "  Events matched:      %d\n", stats.EventsMatched)
	fmt.Fprintf(os.Stderr, "  Chunks emitted:      %d\n", stats.ChunksEmitted)
	fmt.Fprintf(os.Stderr, "  Full-scan fallbacks: %d\n", stats.FullScanFallbacks)
	fmt.Fprintf(os.Stderr, "  Total time:          %s\n", formatElapsed(elapsed))
	if elapsed.Seconds() > 0 && stats.EventsScanned > 0 {
		fmt.Fprintf(os.Stderr, "  Throughput:          %.0f events/sec\n", float64(stats.EventsScanned)/elapsed.Seconds())
	}
}
