package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"AndroidUISpy/pkg/cache"
	"AndroidUISpy/pkg/qpath"
	"AndroidUISpy/pkg/types"
)

// Session bundles the managers of one dump source.
type Session struct {
	Source     DumpSource
	Windows    *WindowManager
	Activities *ActivityManager
	Controls   *ControlManager
}

// NewSession wires managers for source. c may be nil.
func NewSession(source DumpSource, c *cache.Service) *Session {
	wm := NewWindowManager(source)
	am := NewActivityManager(source)
	return &Session{
		Source:     source,
		Windows:    wm,
		Activities: am,
		Controls:   NewControlManager(source, wm, am, c),
	}
}

// App struct
type App struct {
	config  Config
	adbPath string
	cache   *cache.Service

	mu       sync.Mutex
	sessions map[string]*Session
	store    *SnapshotStore
}

// NewApp creates the application from a resolved configuration. Persisted
// settings fill whatever cfg leaves empty.
func NewApp(cfg Config) (*App, error) {
	c, err := cache.New(cache.Config{
		ConfigDir: cfg.ConfigDir,
		LogFunc: func(format string, args ...interface{}) {
			LogWarn("cache").Msgf(format, args...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init config dir: %w", err)
	}
	cfg.ConfigDir = c.ConfigDir()
	cfg = cfg.WithSettings(c.Settings())

	return &App{
		config:   cfg,
		cache:    c,
		sessions: make(map[string]*Session),
	}, nil
}

// Config returns the resolved configuration.
func (a *App) Config() Config { return a.config }

// Cache returns the settings and process cache.
func (a *App) Cache() *cache.Service { return a.cache }

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string { return version }

// Session returns the session of a device, created on first use. With a
// dump directory configured the directory is used instead of adb and
// deviceID is ignored.
func (a *App) Session(ctx context.Context, deviceID string) (*Session, error) {
	var source DumpSource
	if a.config.DumpDir != "" {
		source = &FileDumpSource{Dir: a.config.DumpDir}
	} else {
		if deviceID == "" {
			deviceID = a.config.Device
		}
		id, err := a.resolveDevice(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		source = NewAdbDumpSource(a, id)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[source.ID()]; ok {
		return s, nil
	}
	s := NewSession(source, a.cache)
	a.sessions[source.ID()] = s
	return s, nil
}

// SnapshotStore opens the snapshot database on first use.
func (a *App) SnapshotStore() (*SnapshotStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	store, err := NewSnapshotStore(filepath.Join(a.config.ConfigDir, "data"), a.config.SnapshotCodec)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// RememberDevice persists the device as the default for the next run.
func (a *App) RememberDevice(deviceID string) {
	if deviceID == "" || a.config.DumpDir != "" {
		return
	}
	a.cache.UpdateSettings(func(s *cache.Settings) { s.LastDevice = deviceID })
}

// Shutdown flushes caches and closes the snapshot database.
func (a *App) Shutdown() {
	a.mu.Lock()
	store := a.store
	a.store = nil
	a.mu.Unlock()
	if store != nil {
		if err := store.Close(); err != nil {
			LogWarn("app").Err(err).Msg("Failed to close snapshot store")
		}
	}
	_ = a.cache.Close()
}

// ========================================
// Facade used by the CLI and the MCP server
// ========================================

// WindowState returns the window state of a device, re-dumping when
// refresh is set or nothing was loaded yet.
func (a *App) WindowState(ctx context.Context, deviceID string, refresh bool) (types.WindowStateInfo, error) {
	s, err := a.Session(ctx, deviceID)
	if err != nil {
		return types.WindowStateInfo{}, err
	}
	if refresh || s.Windows.State() == nil {
		if err := s.Windows.Update(ctx); err != nil {
			return types.WindowStateInfo{}, err
		}
	}
	return WindowStateInfo(s.Windows.State()), nil
}

// ActivityList returns the activities of a device in stack order.
func (a *App) ActivityList(ctx context.Context, deviceID string, refresh bool) ([]types.ActivityInfo, error) {
	s, err := a.Session(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if refresh {
		if err := s.Activities.Update(ctx); err != nil {
			return nil, err
		}
	}
	stacks, err := s.Activities.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	return ActivityInfos(stacks), nil
}

// WindowProcess resolves the process of a window on a device.
func (a *App) WindowProcess(ctx context.Context, deviceID, window string) (types.WindowProcess, error) {
	s, err := a.Session(ctx, deviceID)
	if err != nil {
		return types.WindowProcess{}, err
	}
	return s.Controls.WindowProcess(ctx, window)
}

// LocateControl resolves a QPath on a device.
func (a *App) LocateControl(ctx context.Context, deviceID string, req types.LocateRequest) (types.ControlMatch, error) {
	s, err := a.Session(ctx, deviceID)
	if err != nil {
		return types.ControlMatch{}, err
	}
	return s.Controls.Locate(ctx, req)
}

// GenerateQPath builds a unique QPath for a control on a device.
func (a *App) GenerateQPath(ctx context.Context, deviceID string, hashcode int64) (types.ControlMatch, error) {
	s, err := a.Session(ctx, deviceID)
	if err != nil {
		return types.ControlMatch{}, err
	}
	return s.Controls.GenerateQPath(ctx, hashcode)
}

// ParseQPath describes a QPath without touching any device.
func (a *App) ParseQPath(text string) (types.QPathInfo, error) {
	q, err := qpath.Parse(text)
	if err != nil {
		return types.QPathInfo{}, err
	}
	info := types.QPathInfo{
		Source:    q.Source(),
		Separator: q.Separator(),
		Canonical: q.String(),
	}
	for _, l := range q.Locators() {
		info.Locators = append(info.Locators, l.String())
	}
	return info, nil
}
