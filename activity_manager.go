package main

import (
	"context"
	"fmt"
	"sync"

	"AndroidUISpy/pkg/dumpsys"
	"AndroidUISpy/pkg/types"
)

// ActivityManager keeps the latest activity dump of one source. The dump
// is parsed lazily on first access after an update.
type ActivityManager struct {
	source DumpSource

	mu     sync.Mutex
	raw    string
	loaded bool
	stacks []*dumpsys.Stack
	parsed bool
}

// NewActivityManager creates a manager reading from source.
func NewActivityManager(source DumpSource) *ActivityManager {
	return &ActivityManager{source: source}
}

// Update fetches a fresh activity dump.
func (m *ActivityManager) Update(ctx context.Context) error {
	raw, err := m.source.DumpActivityState(ctx)
	if err != nil {
		return fmt.Errorf("dump activity state: %w", err)
	}
	m.Load(raw)
	return nil
}

// Load replaces the dump text; parsing is deferred.
func (m *ActivityManager) Load(raw string) {
	m.mu.Lock()
	m.raw = raw
	m.loaded = true
	m.stacks = nil
	m.parsed = false
	m.mu.Unlock()
}

// Raw returns the latest dump text.
func (m *ActivityManager) Raw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw
}

// Stacks returns the parsed stacks, updating first when nothing was loaded.
func (m *ActivityManager) Stacks(ctx context.Context) ([]*dumpsys.Stack, error) {
	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		if err := m.Update(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.parsed {
		m.stacks = dumpsys.ParseActivityDump(m.raw, dumpsys.WithLogger(ModuleLogger("activity")))
		m.parsed = true
		ActivityLog().Str("source", m.source.ID()).Int("stacks", len(m.stacks)).Msg("Activity dump parsed")
	}
	return m.stacks, nil
}

// Activities returns all activities in stack order.
func (m *ActivityManager) Activities(ctx context.Context) ([]*dumpsys.Activity, error) {
	stacks, err := m.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	return dumpsys.Activities(stacks), nil
}

// FindActivity returns the first activity with the given class name.
func (m *ActivityManager) FindActivity(ctx context.Context, name string) (*dumpsys.Activity, error) {
	acts, err := m.Activities(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range acts {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, nil
}

// ResumedActivity returns the resumed activity, nil when none.
func (m *ActivityManager) ResumedActivity(ctx context.Context) (*dumpsys.Activity, error) {
	stacks, err := m.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	return dumpsys.ResumedActivity(stacks), nil
}

// ActivityInfos flattens stacks for JSON output.
func ActivityInfos(stacks []*dumpsys.Stack) []types.ActivityInfo {
	var out []types.ActivityInfo
	for _, s := range stacks {
		for _, t := range s.Tasks {
			for _, a := range t.Activities {
				out = append(out, types.ActivityInfo{
					StackID:     s.ID,
					TaskID:      a.Record.TaskID,
					Index:       a.Index,
					Hashcode:    a.Record.Hashcode,
					Name:        a.Name(),
					PackageName: a.PackageName(),
					ProcessName: a.ProcessName(),
					State:       a.State(),
				})
			}
		}
	}
	return out
}
