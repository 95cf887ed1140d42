package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/tv_snapshot/internal/chart"
)

func testRequest() chart.CaptureRequest {
	return chart.CaptureRequest{
		Symbol:   "BINANCE:BTCUSDT",
		Interval: "D",
		Width:    1200,
		Height:   600,
		Theme:    chart.ThemeDark,
	}
}

func TestArchiveWritesImageAndSidecar(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}

	image := []byte("png-bytes")
	meta, err := store.Archive(testRequest(), image)
	if err != nil {
		t.Fatalf("Archive() = %v; want nil", err)
	}
	if meta.ID == "" {
		t.Fatal("Archive() returned empty ID")
	}
	if meta.SizeBytes != len(image) {
		t.Fatalf("SizeBytes = %d; want %d", meta.SizeBytes, len(image))
	}

	got, err := os.ReadFile(filepath.Join(store.dir, meta.ID+".png"))
	if err != nil {
		t.Fatalf("read archived image: %v", err)
	}
	if string(got) != string(image) {
		t.Fatalf("archived image = %q; want %q", got, image)
	}
	if _, err := os.Stat(filepath.Join(store.dir, meta.ID+".json")); err != nil {
		t.Fatalf("stat sidecar: %v", err)
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}

	first, err := store.Archive(testRequest(), []byte("one"))
	if err != nil {
		t.Fatalf("Archive() = %v; want nil", err)
	}
	second, err := store.Archive(testRequest(), []byte("two"))
	if err != nil {
		t.Fatalf("Archive() = %v; want nil", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List() len = %d; want 2", len(metas))
	}
	if metas[0].CreatedAt.Before(metas[1].CreatedAt) {
		t.Fatalf("List() order: %s before %s; want newest first", metas[0].ID, metas[1].ID)
	}
	_ = first
	_ = second
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"id":"not-an-archive-id"}`), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}
	if _, err := store.Archive(testRequest(), []byte("png")); err != nil {
		t.Fatalf("Archive() = %v; want nil", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(metas) != 1 {
		t.Fatalf("List() len = %d; want 1 (foreign file skipped)", len(metas))
	}
}
