// Package trace records contact events and body states of a simulation into
// a compressed bundle on disk and loads them back for inspection.
package trace

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var nameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// DefaultFrameBatch is the number of frames buffered before they are compressed.
const DefaultFrameBatch = 30

const (
	frameHeaderSize = 8 + 8 + 8 + 4
	bodyStateSize   = 4 + 1 + 13*8
)

// Event kinds.
const (
	KindAdded     = "added"
	KindPersisted = "persisted"
	KindRemoved   = "removed"
	KindRejected  = "rejected"
)

// Event is one contact lifecycle record.
type Event struct {
	Step        uint64    `json:"step"`
	Kind        string    `json:"kind"`
	BodyA       uint32    `json:"body_a"`
	BodyB       uint32    `json:"body_b"`
	Points      int       `json:"points,omitempty"`
	Friction    float64   `json:"friction,omitempty"`
	Restitution float64   `json:"restitution,omitempty"`
	Sensor      bool      `json:"sensor,omitempty"`
	Estimate    *Estimate `json:"estimate,omitempty"`
	CapturedAt  string    `json:"captured_at"`
}

// BodyState is the state of one body inside a Frame.
type BodyState struct {
	ID              uint32
	Type            uint8
	Position        [3]float64
	Rotation        [4]float64 // w, x, y, z
	Velocity        [3]float64
	AngularVelocity [3]float64
}

// Frame is a snapshot of every body after a step.
type Frame struct {
	Step       uint64
	Time       float64
	CapturedAt time.Time
	Bodies     []BodyState
}

// Writer streams trace artefacts to disk.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	batch       int
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	pending     []Frame
	closed      bool
}

// NewWriter prepares the bundle directory under root and opens compressed sinks.
func NewWriter(root, name string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("trace root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := nameCleaner.ReplaceAllString(name, "")
	if cleaned == "" {
		cleaned = "trace"
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
	eventStream := snappy.NewBufferedWriter(eventFile)

	frameFile, err := os.Create(filepath.Join(path, framesFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:    ManifestVersion,
		Name:       cleaned,
		CreatedAt:  created.Format(time.RFC3339Nano),
		FrameBatch: DefaultFrameBatch,
		EventsPath: eventsFile,
		FramesPath: framesFile,
	}
	if err := WriteManifest(path, manifest); err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{
		dir:         path,
		now:         clock,
		batch:       DefaultFrameBatch,
		eventFile:   eventFile,
		eventStream: eventStream,
		frameFile:   frameFile,
		frameStream: frameStream,
	}
	return writer, manifest, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(e Event) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	e.CapturedAt = w.now().UTC().Format(time.RFC3339Nano)
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendFrame buffers a frame and compresses the batch once it is full.
func (w *Writer) AppendFrame(f Frame) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = w.now().UTC()
	}
	f.Bodies = append([]BodyState(nil), f.Bodies...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	w.pending = append(w.pending, f)
	if len(w.pending) >= w.batch {
		return w.flushLocked()
	}
	return nil
}

// Flush forces pending frames to be written.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes all buffers and releases file handles, returning the first failure.
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
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes buffered frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	for _, frame := range w.pending {
		if _, err := w.frameStream.Write(encodeFrame(frame)); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}

// encodeFrame lays out a length-prefixed frame: step, time bits, capture time,
// payload length, then fixed size body records.
func encodeFrame(f Frame) []byte {
	buf := make([]byte, frameHeaderSize+len(f.Bodies)*bodyStateSize)
	binary.LittleEndian.PutUint64(buf[0:8], f.Step)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(f.Time))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(f.CapturedAt.UnixNano()))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(f.Bodies)*bodyStateSize))

	off := frameHeaderSize
	for _, b := range f.Bodies {
		binary.LittleEndian.PutUint32(buf[off:], b.ID)
		buf[off+4] = b.Type
		off += 5
		for _, v := range b.floats() {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
			off += 8
		}
	}
	return buf
}

func (b *BodyState) floats() [13]float64 {
	return [13]float64{
		b.Position[0], b.Position[1], b.Position[2],
		b.Rotation[0], b.Rotation[1], b.Rotation[2], b.Rotation[3],
		b.Velocity[0], b.Velocity[1], b.Velocity[2],
		b.AngularVelocity[0], b.AngularVelocity[1], b.AngularVelocity[2],
	}
}

func decodeBodyState(p []byte) BodyState {
	var f [13]float64
	for i := range f {
		f[i] = math.Float64frombits(binary.LittleEndian.Uint64(p[5+i*8:]))
	}
	return BodyState{
		ID:              binary.LittleEndian.Uint32(p[0:4]),
		Type:            p[4],
		Position:        [3]float64{f[0], f[1], f[2]},
		Rotation:        [4]float64{f[3], f[4], f[5], f[6]},
		Velocity:        [3]float64{f[7], f[8], f[9]},
		AngularVelocity: [3]float64{f[10], f[11], f[12]},
	}
}
