package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DumpSource produces the raw text of the dumps the parsers consume.
type DumpSource interface {
	// ID names the source: a device serial or "dir:<path>".
	ID() string
	DumpWindowState(ctx context.Context) (string, error)
	DumpActivityState(ctx context.Context) (string, error)
	// DumpUIHierarchy returns a uiautomator XML dump or a JSON control tree.
	DumpUIHierarchy(ctx context.Context) (string, error)
}

// ========================================
// AdbDumpSource - 通过 adb 获取 dumpsys 输出
// ========================================

// AdbDumpSource reads dumps from a connected device.
type AdbDumpSource struct {
	app      *App
	deviceID string
}

// NewAdbDumpSource returns a source for one device.
func NewAdbDumpSource(app *App, deviceID string) *AdbDumpSource {
	return &AdbDumpSource{app: app, deviceID: deviceID}
}

func (s *AdbDumpSource) ID() string { return s.deviceID }

// Full dumps: the window list plus the focus and input method lines that
// follow it.
const (
	windowDumpCmd   = "shell dumpsys window"
	activityDumpCmd = "shell dumpsys activity activities"
)

func (s *AdbDumpSource) DumpWindowState(ctx context.Context) (string, error) {
	return s.dump(ctx, windowDumpCmd)
}

func (s *AdbDumpSource) DumpActivityState(ctx context.Context) (string, error) {
	return s.dump(ctx, activityDumpCmd)
}

func (s *AdbDumpSource) dump(ctx context.Context, cmd string) (string, error) {
	timer := StartOperation("device", "dump").AddDetail("deviceId", s.deviceID).AddDetail("cmd", cmd)
	out, err := s.app.RunAdbCommandWithContext(ctx, s.deviceID, cmd)
	if err != nil {
		timer.EndWithError(err)
		return "", err
	}
	timer.AddDetail("bytes", len(out)).End()
	return stripCR(out), nil
}

// DumpUIHierarchy runs `uiautomator dump` and reads the file back. The dump
// is flaky on some devices so it is retried, killing a stuck uiautomator
// between attempts.
func (s *AdbDumpSource) DumpUIHierarchy(ctx context.Context) (string, error) {
	const (
		maxRetries = 3
		dumpFile   = "/data/local/tmp/uispy.xml"
	)
	var (
		content string
		err     error
	)
	for i := 0; i < maxRetries; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if i > 0 {
			_, _ = s.app.RunAdbCommandWithContext(ctx, s.deviceID, "shell pkill uiautomator")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		content, err = s.app.RunAdbCommandWithContext(ctx, s.deviceID, fmt.Sprintf("shell uiautomator dump %s && cat %s", dumpFile, dumpFile))
		if err == nil && strings.Contains(content, "<?xml") {
			return stripCR(content), nil
		}
		LogDebug("device").Int("retry", i+1).Int("maxRetries", maxRetries).Err(err).Msg("UI dump retry")
	}
	if err == nil {
		err = errors.New("no XML in output")
	}
	return "", fmt.Errorf("failed to dump UI after %d attempts: %w", maxRetries, err)
}

// ========================================
// FileDumpSource - 离线 dump 目录
// ========================================

// Files read by FileDumpSource.
const (
	WindowDumpFile   = "window.txt"
	ActivityDumpFile = "activity.txt"
	UIXMLFile        = "ui.xml"
	UIJSONFile       = "tree.json"
)

// FileDumpSource reads dumps saved in a directory, e.g. with
// `adb shell dumpsys window > window.txt`.
type FileDumpSource struct {
	Dir string
}

func (s *FileDumpSource) ID() string { return "dir:" + s.Dir }

func (s *FileDumpSource) DumpWindowState(ctx context.Context) (string, error) {
	return s.read(WindowDumpFile)
}

func (s *FileDumpSource) DumpActivityState(ctx context.Context) (string, error) {
	return s.read(ActivityDumpFile)
}

// DumpUIHierarchy prefers ui.xml and falls back to tree.json.
func (s *FileDumpSource) DumpUIHierarchy(ctx context.Context) (string, error) {
	out, err := s.read(UIXMLFile)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return out, err
	}
	return s.read(UIJSONFile)
}

func (s *FileDumpSource) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("read dump: %w", err)
	}
	return stripCR(string(data)), nil
}

func stripCR(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}
