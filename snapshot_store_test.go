package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// setupTestStore creates a temporary SnapshotStore for testing
func setupTestStore(t *testing.T, codec string) (*SnapshotStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "snapshot_store_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store, err := NewSnapshotStore(tmpDir, codec)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create SnapshotStore: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func TestSnapshotCodecs(t *testing.T) {
	raw := []byte(strings.Repeat(testWindowDump, 20))
	for _, codec := range []string{CodecNone, CodecZstd, CodecBrotli} {
		enc, err := encodeSnapshot(codec, raw)
		if err != nil {
			t.Fatalf("encodeSnapshot(%s): %v", codec, err)
		}
		if codec != CodecNone && len(enc) >= len(raw) {
			t.Errorf("%s did not compress: %d >= %d", codec, len(enc), len(raw))
		}
		dec, err := decodeSnapshot(codec, enc)
		if err != nil {
			t.Fatalf("decodeSnapshot(%s): %v", codec, err)
		}
		if !bytes.Equal(dec, raw) {
			t.Errorf("%s round trip mismatch", codec)
		}
	}

	if _, err := encodeSnapshot("lz4", raw); err == nil {
		t.Error("Unknown codec should fail")
	}
}

func TestSnapshotStoreCreation(t *testing.T) {
	store, cleanup := setupTestStore(t, CodecZstd)
	defer cleanup()

	if store.db == nil {
		t.Fatal("Database connection should not be nil")
	}
	if _, err := os.Stat(store.Path()); os.IsNotExist(err) {
		t.Fatalf("Database file should exist at %s", store.Path())
	}
}

func TestSnapshotStoreRejectsUnknownCodec(t *testing.T) {
	if _, err := NewSnapshotStore(t.TempDir(), "lz4"); err == nil {
		t.Fatal("Expected error for unknown codec")
	}
}

func TestSnapshotSaveGet(t *testing.T) {
	for _, codec := range []string{CodecNone, CodecZstd, CodecBrotli} {
		t.Run(codec, func(t *testing.T) {
			store, cleanup := setupTestStore(t, codec)
			defer cleanup()

			info, err := store.Save("emulator-5554", KindWindow, testWindowDump)
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if info.ID == "" || info.Codec != codec || info.RawSize != len(testWindowDump) {
				t.Errorf("Unexpected info %+v", info)
			}

			snap, err := store.Get(info.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if snap.Raw != testWindowDump {
				t.Error("Raw dump mismatch")
			}
			if snap.Size != info.Size || snap.DeviceID != "emulator-5554" || snap.Kind != KindWindow {
				t.Errorf("Unexpected snapshot %+v", snap.SnapshotInfo)
			}
		})
	}
}

func TestSnapshotLatestAndList(t *testing.T) {
	store, cleanup := setupTestStore(t, CodecZstd)
	defer cleanup()

	first, _ := store.Save("dev1", KindWindow, "first")
	second, _ := store.Save("dev1", KindWindow, "second")
	if _, err := store.Save("dev1", KindActivity, "activity"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save("dev2", KindWindow, "other"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	latest, err := store.Latest("dev1", KindWindow)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != second.ID || latest.Raw != "second" {
		t.Errorf("Latest = %s %q, want %s", latest.ID, latest.Raw, second.ID)
	}
	if _, err := store.Latest("dev3", KindWindow); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}

	tests := []struct {
		device, kind string
		limit        int
		want         int
	}{
		{"", "", 0, 4},
		{"dev1", "", 0, 3},
		{"dev1", KindWindow, 0, 2},
		{"", KindWindow, 0, 3},
		{"", "", 2, 2},
	}
	for _, tt := range tests {
		list, err := store.List(tt.device, tt.kind, tt.limit)
		if err != nil {
			t.Fatalf("List(%q, %q, %d): %v", tt.device, tt.kind, tt.limit, err)
		}
		if len(list) != tt.want {
			t.Errorf("List(%q, %q, %d) returned %d, want %d", tt.device, tt.kind, tt.limit, len(list), tt.want)
		}
	}

	list, _ := store.List("dev1", KindWindow, 0)
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("List should return newest first")
	}
}

func TestSnapshotDelete(t *testing.T) {
	store, cleanup := setupTestStore(t, CodecNone)
	defer cleanup()

	info, _ := store.Save("dev1", KindUI, "<hierarchy/>")
	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(info.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound after delete, got %v", err)
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Deleting twice should report ErrSnapshotNotFound, got %v", err)
	}
}

func TestSnapshotPrune(t *testing.T) {
	store, cleanup := setupTestStore(t, CodecZstd)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if _, err := store.Save("dev1", KindWindow, "dump"); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	n, err := store.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 0 {
		t.Errorf("Prune(1h) deleted %d fresh snapshots", n)
	}

	// a negative age puts the cutoff in the future
	n, err = store.Prune(-time.Minute)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 3 {
		t.Errorf("Prune(-1m) deleted %d, want 3", n)
	}
	if list, _ := store.List("", "", 0); len(list) != 0 {
		t.Errorf("Expected empty store, got %d", len(list))
	}
}
