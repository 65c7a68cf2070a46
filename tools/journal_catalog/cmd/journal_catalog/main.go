package main

import (
	"flag"
	"fmt"
	"os"

	"hordeforge/engine/tools/journal_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing run journals")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := journalcatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := journalcatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (run %s, created %s)\n", entry.Dir, entry.Manifest.RunID, entry.Manifest.CreatedAt)
		if entry.Open() {
			fmt.Println("  status: open")
			continue
		}
		fmt.Printf("  seed: %s\n", entry.Header.Seed)
		fmt.Printf("  events: %d snapshots: %d\n", entry.Header.Events, entry.Header.Snapshots)
		fmt.Printf("  closed: %s\n", entry.Header.ClosedAt)
	}
}
