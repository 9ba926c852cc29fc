package trace

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Trace is a decoded bundle.
type Trace struct {
	Dir      string
	Manifest Manifest
	Events   []Event
	Frames   []Frame
}

// Load reads the manifest in dir and decodes both streams.
func Load(dir string) (*Trace, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	t := &Trace{Dir: dir, Manifest: manifest}

	if t.Events, err = readEvents(filepath.Join(dir, manifest.EventsPath)); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	if t.Frames, err = readFrames(filepath.Join(dir, manifest.FramesPath)); err != nil {
		return nil, fmt.Errorf("frames: %w", err)
	}
	return t, nil
}

func readEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(snappy.NewReader(f))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func readFrames(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var frames []Frame
	header := make([]byte, frameHeaderSize)
	for {
		if _, err := io.ReadFull(dec, header); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, err
		}
		size := binary.LittleEndian.Uint32(header[24:28])
		if size%bodyStateSize != 0 {
			return nil, fmt.Errorf("frame %d: payload of %d bytes is not a whole number of bodies", len(frames), size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(dec, payload); err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(frames), err)
		}

		frame := Frame{
			Step:       binary.LittleEndian.Uint64(header[0:8]),
			Time:       math.Float64frombits(binary.LittleEndian.Uint64(header[8:16])),
			CapturedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(header[16:24]))).UTC(),
			Bodies:     make([]BodyState, 0, size/bodyStateSize),
		}
		for off := 0; off < len(payload); off += bodyStateSize {
			frame.Bodies = append(frame.Bodies, decodeBodyState(payload[off:off+bodyStateSize]))
		}
		frames = append(frames, frame)
	}
}

// EventsOfKind returns the events with the given kind in recorded order.
func (t *Trace) EventsOfKind(kind string) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// KindCounts counts events per kind.
func (t *Trace) KindCounts() map[string]int {
	counts := make(map[string]int)
	for _, e := range t.Events {
		counts[e.Kind]++
	}
	return counts
}

// Body returns the recorded states of one body, one per frame it appears in.
func (t *Trace) Body(id uint32) []BodyState {
	var out []BodyState
	for _, f := range t.Frames {
		for _, b := range f.Bodies {
			if b.ID == id {
				out = append(out, b)
			}
		}
	}
	return out
}
