package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStateMonitorPoll(t *testing.T) {
	s := newTestSession(t, false)
	store, cleanup := setupTestStore(t, CodecZstd)
	defer cleanup()

	var mu sync.Mutex
	var changes []StateChange
	m := NewStateMonitor(s, time.Second, store, func(c StateChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	ctx := context.Background()

	change, changed, err := m.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !changed {
		t.Fatal("First poll should report a change")
	}
	if change.Focus != "com.foo/.Detail" || change.Resumed != "com.foo.Detail" {
		t.Errorf("Unexpected change %s", change)
	}
	if len(change.Snapshots) != 2 {
		t.Fatalf("Expected window and activity snapshots, got %d", len(change.Snapshots))
	}
	snap, err := store.Get(change.Snapshots[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Kind != KindWindow || snap.Raw != testWindowDump {
		t.Errorf("Unexpected window snapshot %+v", snap.SnapshotInfo)
	}

	if _, changed, err := m.Poll(ctx); err != nil || changed {
		t.Fatalf("Second poll without changes: changed=%v err=%v", changed, err)
	}

	// move focus to the launcher
	dir := strings.TrimPrefix(s.Source.ID(), "dir:")
	moved := strings.ReplaceAll(testWindowDump,
		"mCurrentFocus=Window{a1b2c3 u0 com.foo/.Detail}",
		"mCurrentFocus=Window{c3d4e5f u0 com.android.launcher3/com.android.launcher3.Launcher}")
	if err := os.WriteFile(filepath.Join(dir, WindowDumpFile), []byte(moved), 0644); err != nil {
		t.Fatal(err)
	}

	change, changed, err = m.Poll(ctx)
	if err != nil || !changed {
		t.Fatalf("Poll after focus move: changed=%v err=%v", changed, err)
	}
	if change.PrevFocus != "com.foo/.Detail" || change.Focus != "com.android.launcher3/com.android.launcher3.Launcher" {
		t.Errorf("Unexpected change %s", change)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Errorf("Expected 2 callbacks, got %d", len(changes))
	}
	if list, _ := store.List(s.Source.ID(), "", 0); len(list) != 4 {
		t.Errorf("Expected 4 stored snapshots, got %d", len(list))
	}
}

func TestStateMonitorPollError(t *testing.T) {
	s := NewSession(&FileDumpSource{Dir: t.TempDir()}, nil)
	m := NewStateMonitor(s, time.Second, nil, nil)
	if _, _, err := m.Poll(context.Background()); err == nil {
		t.Fatal("Poll should fail without dump files")
	}
}

func TestStateMonitorStartStop(t *testing.T) {
	s := newTestSession(t, false)
	polled := make(chan StateChange, 1)
	m := NewStateMonitor(s, 10*time.Millisecond, nil, func(c StateChange) {
		select {
		case polled <- c:
		default:
		}
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("Second Start should fail")
	}

	select {
	case c := <-polled:
		if c.Focus != "com.foo/.Detail" {
			t.Errorf("Unexpected focus %q", c.Focus)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not poll")
	}

	m.Stop()
	m.Stop()
}
