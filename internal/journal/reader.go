package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Event is one line of the event log.
type Event struct {
	Seq        uint64          `json:"seq"`
	CapturedAt time.Time       `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// SnapshotFrame is one decoded snapshot; AfterSeq is the last event written before it.
type SnapshotFrame struct {
	AfterSeq   uint64
	CapturedAt time.Time
	Payload    json.RawMessage
}

// Journal is a fully decoded bundle.
type Journal struct {
	Dir       string
	Manifest  Manifest
	Header    *Header
	Events    []Event
	Snapshots []SnapshotFrame
}

// Open decodes the bundle at dir. A missing header means the writer never
// closed; events and snapshots written so far are still returned.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal directory must be provided")
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	journal := &Journal{Dir: dir}
	if err := json.Unmarshal(data, &journal.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	header, err := ReadHeader(filepath.Join(dir, headerFile))
	switch {
	case err == nil:
		journal.Header = &header
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read header: %w", err)
	}

	if journal.Events, err = readEvents(filepath.Join(dir, journal.Manifest.EventsPath)); err != nil {
		return nil, err
	}
	if journal.Snapshots, err = readSnapshots(filepath.Join(dir, journal.Manifest.SnapshotsPath)); err != nil {
		return nil, err
	}
	return journal, nil
}

func readEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func readSnapshots(path string) ([]SnapshotFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var frames []SnapshotFrame
	header := make([]byte, frameHeaderSize)
	for {
		//1.- Read the fixed header, then exactly the advertised payload length.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, fmt.Errorf("truncated snapshot header after %d frames", len(frames))
			}
			return nil, err
		}
		size := binary.LittleEndian.Uint32(header[16:20])
		payload := make([]byte, size)
		if _, err := io.ReadFull(decoder, payload); err != nil {
			return frames, fmt.Errorf("truncated snapshot payload after %d frames: %w", len(frames), err)
		}
		frames = append(frames, SnapshotFrame{
			AfterSeq:   binary.LittleEndian.Uint64(header[0:8]),
			CapturedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(header[8:16]))).UTC(),
			Payload:    payload,
		})
	}
}

// List returns every bundle directory under root, newest first.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	type bundle struct {
		path string
		mod  time.Time
	}
	var bundles []bundle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := os.Stat(filepath.Join(path, manifestFile))
		if err != nil {
			continue
		}
		bundles = append(bundles, bundle{path: path, mod: info.ModTime()})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].mod.After(bundles[j].mod) })
	out := make([]string, len(bundles))
	for i, b := range bundles {
		out[i] = b.path
	}
	return out, nil
}
