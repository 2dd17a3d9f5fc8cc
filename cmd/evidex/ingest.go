package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/evidex/evidex/internal/config"
	"github.com/evidex/evidex/internal/ingest"
	"github.com/evidex/evidex/internal/progress"
)

// =============================================================================
// Ingest Command
// =============================================================================

func runIngest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	inputPath := fs.String("input", "", "Telemetry input file (\"-\" for stdin, default: config source.input_path)")
	schemaDir := fs.String("schema", "", "Schema directory (default: config source.schema_dir)")
	workers := fs.Int("workers", 0, "Parallel workers (0 = config default / NumCPU)")
	batchSize := fs.Int("batch-size", 0, "Records per archive write batch (0 = config default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ingest [options]\n\n")
		fmt.Fprintf(os.Stderr, "Ingests newline-delimited JSON telemetry events into the archive and indexes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --input <path>      Telemetry input (\"-\" for stdin, default: %s)\n", cfg.Source.InputPath)
		fmt.Fprintf(os.Stderr, "  --schema <dir>      Schema directory (default: %s)\n", cfg.Source.SchemaDir)
		fmt.Fprintf(os.Stderr, "  --workers <n>       Parallel workers (default: config/NumCPU)\n")
		fmt.Fprintf(os.Stderr, "  --batch-size <n>    Records per archive write batch (default: %d)\n", cfg.Ingestion.BatchSize)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if *inputPath != "" {
		cfg.Source.InputPath = *inputPath
	}
	if *schemaDir != "" {
		cfg.Source.SchemaDir = *schemaDir
	}
	if *workers > 0 {
		cfg.Ingestion.Workers = *workers
	}
	if *batchSize > 0 {
		cfg.Ingestion.BatchSize = *batchSize
	}

	cmdIngest(cfg)
}

func cmdIngest(cfg *config.Config) {
	p := message.NewPrinter(language.English)

	registry, err := loadRegistry(cfg)
	if err != nil {
		printErrorAndExit("Failed to load schemas: %v", err)
	}
	p.Fprintf(os.Stderr, "Loaded %d schema(s) from %s\n", len(registry), cfg.Source.SchemaDir)

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

	in, err := openInput(cfg.Source.InputPath)
	if err != nil {
		printErrorAndExit("Failed to open input %s: %v", cfg.Source.InputPath, err)
	}
	defer closeInput(in)

	pipelineConfig := ingest.PipelineConfig{
		Workers:     cfg.Ingestion.Workers,
		BatchSize:   cfg.Ingestion.BatchSize,
		QueueSize:   cfg.Ingestion.QueueSize,
		SaveIndexes: cfg.Ingestion.SaveIndexes,
	}
	pipeline := ingest.NewPipeline(pipelineConfig, arc, idx, registry)

	var progressWriter *progress.Writer
	if cfg.Ingestion.ProgressFile != "" {
		progressWriter = progress.NewWriter(cfg.Ingestion.ProgressFile, 0)
		fmt.Fprintf(os.Stderr, "Progress file: %s\n", cfg.Ingestion.ProgressFile)
	}

	pipeline.SetProgressCallback(func(line uint64, linesProcessed, eventsTotal int) {
		p.Fprintf(os.Stderr, "Processed %d lines, %d events (line %d)...\n", linesProcessed, eventsTotal, line)
		if progressWriter != nil {
			if err := progressWriter.Update(line, linesProcessed, eventsTotal); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write progress: %v\n", err)
			}
		}
	})

	pipeline.SetErrorCallback(func(line uint64, err error) {
		fmt.Fprintf(os.Stderr, "Error processing line %d: %v\n", line, err)
	})

	fmt.Fprintf(os.Stderr, "Ingesting telemetry from %s...\n", cfg.Source.InputPath)
	startTime := time.Now()

	if err := pipeline.Run(in); err != nil {
		stats := pipeline.GetStats()
		if progressWriter != nil {
			_ = progressWriter.Failed(uint64(stats.LinesProcessed), int(stats.LinesProcessed), int(stats.EventsIndexed), err)
		}
		printErrorAndExit("Pipeline failed: %v", err)
	}

	elapsed := time.Since(startTime)
	stats := pipeline.GetStats()

	if progressWriter != nil {
		if err := progressWriter.Complete(int(stats.LinesProcessed), int(stats.EventsIndexed)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write progress: %v\n", err)
		}
	}

	p.Fprintf(os.Stderr, "\n=== Ingestion Complete ===\n\n")
	p.Fprintf(os.Stderr, "  Lines processed:   %d\n", stats.LinesProcessed)
	p.Fprintf(os.Stderr, "  Events indexed:    %d\n", stats.EventsIndexed)
	p.Fprintf(os.Stderr, "  Extract errors:    %d\n", stats.ExtractErrors)
	p.Fprintf(os.Stderr, "  Wall clock time:   %s\n", formatElapsed(elapsed))
	if elapsed.Seconds() > 0 {
		p.Fprintf(os.Stderr, "  Avg events/sec:    %.0f\n", float64(stats.EventsIndexed)/elapsed.Seconds())
	}
	p.Fprintf(os.Stderr, "  Archive write time: %s\n", formatElapsed(pipeline.GetWriteTime()))
}
