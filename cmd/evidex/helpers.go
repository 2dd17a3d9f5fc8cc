package main

import (
	"fmt"
	"os"
	"time"

	"github.com/evidex/evidex/internal/actor"
	"github.com/evidex/evidex/internal/archive"
	"github.com/evidex/evidex/internal/config"
	"github.com/evidex/evidex/internal/ingest"
)

// =============================================================================
// Storage Initialization
// =============================================================================

// openArchive opens the event archive at the path named in cfg.
func openArchive(cfg *config.Config) (*archive.Archive, error) {
	return archive.Open(cfg.Storage.ArchivePath)
}

// openIndexPair opens the meta/data bitmap index pair at the path named
// in cfg. Callers that don't otherwise scan for persisted indexes (the
// ingest pipeline scans itself on Run) must call Scan before use.
func openIndexPair(cfg *config.Config) (*actor.IndexPair, error) {
	return actor.NewIndexPair(cfg.Storage.IndexPath)
}

// loadRegistry loads the schema registry from cfg.Source.SchemaDir.
func loadRegistry(cfg *config.Config) (ingest.Registry, error) {
	return ingest.LoadSchemas(cfg.Source.SchemaDir)
}

// openInput opens the telemetry input named by path, "-" or "" meaning stdin.
func openInput(path string) (*os.File, error) {
	if path == "-" || path == "" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// closeInput closes f unless it is stdin.
func closeInput(f *os.File) {
	if f != os.Stdin {
		f.Close()
	}
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// formatElapsed formats a duration for human-readable display.
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func printErrorAndExit(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
