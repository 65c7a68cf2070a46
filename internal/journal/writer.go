package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

const (
	// SchemaVersion tracks the on-disk layout of a journal bundle.
	SchemaVersion = 1

	eventsFile    = "events.jsonl.sz"
	snapshotsFile = "snapshots.bin.zst"
	manifestFile  = "manifest.json"
	headerFile    = "header.json"

	frameHeaderSize = 8 + 8 + 4
)

var runIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("journal writer closed")

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version       int    `json:"version"`
	RunID         string `json:"run_id"`
	CreatedAt     string `json:"created_at"`
	EventsPath    string `json:"events_path"`
	SnapshotsPath string `json:"snapshots_path"`
}

// Writer streams one run's events and snapshots to a bundle directory.
type Writer struct {
	mu          sync.Mutex
	dir         string
	runID       string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	snapFile    *os.File
	snapStream  *zstd.Encoder
	seq         uint64
	events      int
	snapshots   int
	seed        string
	loadout     string
	closed      bool
}

// NewWriter prepares root/<run>-<timestamp> and opens the compressed sinks.
func NewWriter(root, runID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("journal root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	cleaned := runIDCleaner.ReplaceAllString(runID, "")
	if cleaned == "" {
		cleaned = "run"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	snapFile, err := os.Create(filepath.Join(path, snapshotsFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	snapStream, err := zstd.NewWriter(snapFile)
	if err != nil {
		eventFile.Close()
		snapFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:       SchemaVersion,
		RunID:         runID,
		CreatedAt:     created.Format(time.RFC3339Nano),
		EventsPath:    eventsFile,
		SnapshotsPath: snapshotsFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestFile), append(data, '\n'), 0o644)
	}
	if err != nil {
		snapStream.Close()
		snapFile.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		runID:       runID,
		now:         clock,
		eventFile:   eventFile,
		eventStream: snappy.NewBufferedWriter(eventFile),
		snapFile:    snapFile,
		snapStream:  snapStream,
	}, manifest, nil
}

// Directory exposes the bundle directory.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetSeed records the seed persisted in header.json on Close.
func (w *Writer) SetSeed(seed string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.seed = seed
	w.mu.Unlock()
}

// SetLoadout records the character loadout persisted in header.json on Close.
func (w *Writer) SetLoadout(loadout string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.loadout = loadout
	w.mu.Unlock()
}

// Record appends one JSON event line and flushes it so a crash loses at most the current line.
func (w *Writer) Record(kind string, payload any) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.seq++
	line, err := json.Marshal(Event{Seq: w.seq, CapturedAt: captured, Type: kind, Payload: body})
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	w.events++
	return w.eventStream.Flush()
}

// Snapshot appends a length-prefixed JSON frame to the zstd stream.
func (w *Writer) Snapshot(payload any) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	//1.- Frames are sequenced with the event stream so readers can interleave both.
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], w.seq)
	binary.LittleEndian.PutUint64(header[8:16], uint64(captured.UnixNano()))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(body)))
	if _, err := w.snapStream.Write(header); err != nil {
		return err
	}
	if _, err := w.snapStream.Write(body); err != nil {
		return err
	}
	w.snapshots++
	return nil
}

// Close writes header.json and releases every file handle, reporting the first failure.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(WriteHeader(filepath.Join(w.dir, headerFile), Header{
		SchemaVersion: SchemaVersion,
		RunID:         w.runID,
		Seed:          w.seed,
		Loadout:       w.loadout,
		Events:        w.events,
		Snapshots:     w.snapshots,
		ClosedAt:      w.now().UTC().Format(time.RFC3339Nano),
		FilePointer:   manifestFile,
	}))
	keep(w.eventStream.Close())
	keep(w.eventFile.Close())
	keep(w.snapStream.Close())
	keep(w.snapFile.Close())
	return firstErr
}
