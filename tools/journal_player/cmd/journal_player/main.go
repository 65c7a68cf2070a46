package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/tools/journal_player"
)

func main() {
	path := flag.String("path", "", "Path to a run journal directory")
	catalogPath := flag.String("catalog", "", "Optional upgrade catalog the run was recorded with")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	catalog, err := upgrades.Load(*catalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "catalog error:", err)
		os.Exit(1)
	}

	report, err := journalplayer.Verify(*path, catalog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	//1.- Render the report as JSON so callers can pipe the output elsewhere.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
	if !report.Match {
		os.Exit(4)
	}
}
