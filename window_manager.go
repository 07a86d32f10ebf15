package main

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"AndroidUISpy/pkg/dumpsys"
	"AndroidUISpy/pkg/types"
)

// ========================================
// WindowManager - 窗口状态管理
// ========================================

// hashcodePattern tells a window hashcode apart from a window title.
var hashcodePattern = regexp.MustCompile(`^\w{6,8}$`)

// WindowManager keeps the latest parsed window dump of one source.
type WindowManager struct {
	source DumpSource

	mu    sync.RWMutex
	state *dumpsys.WindowState
	raw   string
}

// NewWindowManager creates a manager reading from source.
func NewWindowManager(source DumpSource) *WindowManager {
	return &WindowManager{source: source}
}

// Update re-dumps and re-parses the window state. Attributes the new dump
// omits for windows that still exist are carried over from the previous
// state.
func (m *WindowManager) Update(ctx context.Context) error {
	raw, err := m.source.DumpWindowState(ctx)
	if err != nil {
		return fmt.Errorf("dump window state: %w", err)
	}
	m.Load(raw)
	return nil
}

// Load parses raw as the new window state.
func (m *WindowManager) Load(raw string) *dumpsys.WindowState {
	state := dumpsys.ParseWindowDump(raw, dumpsys.WithLogger(ModuleLogger("window")))

	m.mu.Lock()
	state.CarryOver(m.state)
	m.state = state
	m.raw = raw
	m.mu.Unlock()

	WindowLog().
		Str("source", m.source.ID()).
		Int("windows", len(state.Windows)).
		Msg("Window state updated")
	return state
}

// State returns the latest state, nil before the first update.
func (m *WindowManager) State() *dumpsys.WindowState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Raw returns the dump text the latest state was parsed from.
func (m *WindowManager) Raw() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw
}

// ensure updates once when nothing was loaded yet.
func (m *WindowManager) ensure(ctx context.Context) (*dumpsys.WindowState, error) {
	if s := m.State(); s != nil {
		return s, nil
	}
	if err := m.Update(ctx); err != nil {
		return nil, err
	}
	return m.State(), nil
}

// Windows returns the listed windows.
func (m *WindowManager) Windows(ctx context.Context) ([]*dumpsys.Window, error) {
	s, err := m.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return s.Windows, nil
}

// CurrentWindow returns the focused window, nil when none.
func (m *WindowManager) CurrentWindow(ctx context.Context) (*dumpsys.Window, error) {
	s, err := m.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return s.CurrentFocus, nil
}

// InputTarget returns the input method target, nil when none.
func (m *WindowManager) InputTarget(ctx context.Context) (*dumpsys.Window, error) {
	s, err := m.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return s.InputTarget, nil
}

// ScreenSize returns the portrait screen size derived from the windows.
func (m *WindowManager) ScreenSize(ctx context.Context) (int, int, error) {
	s, err := m.ensure(ctx)
	if err != nil {
		return 0, 0, err
	}
	w, h := s.ScreenSize()
	return w, h, nil
}

// FindWindow looks a window up by hashcode (6 to 8 word characters) or by
// title.
func (m *WindowManager) FindWindow(ctx context.Context, hashOrTitle string) (*dumpsys.Window, error) {
	s, err := m.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if hashcodePattern.MatchString(hashOrTitle) {
		if w, ok := s.Lookup(hashOrTitle); ok {
			return w, nil
		}
	}
	for _, w := range s.Windows {
		if w.Title == hashOrTitle {
			return w, nil
		}
	}
	if w, ok := s.FindByName(hashOrTitle); ok {
		return w, nil
	}
	return nil, fmt.Errorf("window %q not found", hashOrTitle)
}

// windowInfo converts a window for JSON output.
func windowInfo(s *dumpsys.WindowState, w *dumpsys.Window) *types.WindowInfo {
	if w == nil {
		return nil
	}
	info := &types.WindowInfo{
		Hashcode:    w.Hashcode,
		Title:       w.Title,
		Package:     w.PackageName(),
		X:           w.X,
		Y:           w.Y,
		Width:       w.W,
		Height:      w.H,
		HasPosition: w.HasPosition,
		Popup:       s.IsPopup(w),
		Focused:     w.Equal(s.CurrentFocus),
	}
	if w.Attached != nil {
		info.Attached = w.Attached.Hashcode
	}
	return info
}

// WindowStateInfo converts a whole state for JSON output.
func WindowStateInfo(s *dumpsys.WindowState) types.WindowStateInfo {
	out := types.WindowStateInfo{
		Windows:      make([]types.WindowInfo, 0, len(s.Windows)),
		CurrentFocus: windowInfo(s, s.CurrentFocus),
		InputTarget:  windowInfo(s, s.InputTarget),
	}
	out.ScreenWidth, out.ScreenHeight = s.ScreenSize()
	for _, w := range s.Windows {
		out.Windows = append(out.Windows, *windowInfo(s, w))
	}
	return out
}
