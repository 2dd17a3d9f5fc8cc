// Command evidex ingests structured security-telemetry events, builds
// persistent bitmap indexes over them, and evaluates boolean query
// expressions against those indexes — the in-process CLI realization of
// the ingest/query/stats console.
package main

import (
	"fmt"
	"os"

	"github.com/evidex/evidex/internal/config"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, "evidex - event-indexing and query-evaluation engine\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  ingest    Ingest newline-delimited JSON telemetry into the archive and indexes\n")
	fmt.Fprintf(os.Stderr, "  query     Evaluate a query expression against the indexes\n")
	fmt.Fprintf(os.Stderr, "  stats     Show archive and index statistics\n")
	fmt.Fprintf(os.Stderr, "\nConfiguration:\n")
	fmt.Fprintf(os.Stderr, "  Requires evidex.toml in the current directory, $XDG_CONFIG_HOME/evidex/config.toml,\n")
	fmt.Fprintf(os.Stderr, "  or /etc/evidex/config.toml.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s ingest --schema schemas                         # ingest using config settings\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s query -e 'name == \"dns_query\" && @0 == \"a.com\"'  # evaluate an expression\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s stats                                           # show archive/index stats\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if command == "help" || command == "--help" || command == "-h" {
		printUsage()
		return
	}

	configPath, err := config.FindConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Using config: %s\n", configPath)

	switch command {
	case "ingest":
		runIngest(cfg, args)
	case "query":
		runQuery(cfg, args)
	case "stats":
		runStats(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}
