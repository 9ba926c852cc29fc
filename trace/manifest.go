package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestVersion tracks the layout of trace bundles.
const ManifestVersion = 1

const (
	manifestFile = "manifest.json"
	eventsFile   = "events.jsonl.sz"
	framesFile   = "frames.bin.zst"
)

// Manifest describes the trace bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	Name       string `json:"name"`
	CreatedAt  string `json:"created_at"`
	FrameBatch int    `json:"frame_batch"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// Validate ensures the manifest points at both streams.
func (m Manifest) Validate() error {
	if m.Version <= 0 {
		return fmt.Errorf("manifest version must be positive")
	}
	if strings.TrimSpace(m.EventsPath) == "" || strings.TrimSpace(m.FramesPath) == "" {
		return fmt.Errorf("manifest must name the events and frames files")
	}
	return nil
}

// WriteManifest persists m as indented JSON in dir.
func WriteManifest(dir string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), append(data, '\n'), 0o644)
}

// ReadManifest loads and validates the manifest of the bundle in dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
