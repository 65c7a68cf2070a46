package journalcatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hordeforge/engine/internal/journal"
)

// Entry captures a journal header alongside its bundle directory.
type Entry struct {
	Dir      string           `json:"dir"`
	Manifest journal.Manifest `json:"manifest"`
	Header   *journal.Header  `json:"header,omitempty"`
}

// Open reports whether the writer never closed the bundle.
func (e Entry) Open() bool { return e.Header == nil }

// List returns every bundle under root ordered by run id then directory.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}
	dirs, err := journal.List(root)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirs))
	for _, dir := range dirs {
		//1.- The manifest is mandatory; a missing header marks a run still in flight.
		data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
		if err != nil {
			return nil, err
		}
		entry := Entry{Dir: dir}
		if err := json.Unmarshal(data, &entry.Manifest); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		header, err := journal.ReadHeader(filepath.Join(dir, "header.json"))
		switch {
		case err == nil:
			entry.Header = &header
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Manifest.RunID == entries[j].Manifest.RunID {
			return entries[i].Dir < entries[j].Dir
		}
		return entries[i].Manifest.RunID < entries[j].Manifest.RunID
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
