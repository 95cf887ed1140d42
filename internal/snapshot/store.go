// Package snapshot provides an optional on-disk archive of captured chart
// images. The archive is write-only bookkeeping: captures are never served
// from it, every call re-renders.
package snapshot

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
)

var idRe = regexp.MustCompile(`^[0-9]{8}T[0-9]{6}-[0-9a-f]{8}$`)

// Meta describes one archived capture.
type Meta struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Theme     string    `json:"theme"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store archives capture results under a directory, one PNG plus one JSON
// sidecar per capture.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot archive: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// newID returns a sortable archive ID: UTC timestamp plus random suffix.
func newID(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return now.UTC().Format("20060102T150405") + "-" + hex.EncodeToString(suffix)
}

// Archive stores one capture result and returns its metadata.
func (s *Store) Archive(req chart.CaptureRequest, image []byte) (Meta, error) {
	now := time.Now()
	meta := Meta{
		ID:        newID(now),
		Symbol:    req.Symbol,
		Interval:  req.Interval,
		Theme:     req.Theme,
		Width:     req.Width,
		Height:    req.Height,
		SizeBytes: len(image),
		CreatedAt: now.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := filepath.Join(s.dir, meta.ID+".png")
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, image, 0o644); err != nil {
		return Meta{}, fmt.Errorf("snapshot archive: write image: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, fmt.Errorf("snapshot archive: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, fmt.Errorf("snapshot archive: write meta: %w", err)
	}

	return meta, nil
}

// List returns archived captures sorted newest first.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot archive: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if !idRe.MatchString(meta.ID) {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}
