package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AndroidUISpy/pkg/types"

	"golang.org/x/time/rate"
)

// ========================================
// StateMonitor - 窗口/Activity 状态监控
// 定时拉取 dump, 焦点或前台 Activity 变化时保存快照并回调
// ========================================

// StateChange describes a focus or resumed activity transition.
type StateChange struct {
	Source      string
	Time        time.Time
	Focus       string
	PrevFocus   string
	Resumed     string
	PrevResumed string
	Snapshots   []types.SnapshotInfo
}

func (c StateChange) String() string {
	return fmt.Sprintf("focus %q -> %q, resumed %q -> %q", c.PrevFocus, c.Focus, c.PrevResumed, c.Resumed)
}

// StateMonitor polls one session.
type StateMonitor struct {
	session  *Session
	store    *SnapshotStore
	limiter  *rate.Limiter
	onChange func(StateChange)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	polled  bool
	focus   string
	resumed string
}

// NewStateMonitor creates a monitor polling at most once per interval.
// store and onChange may be nil.
func NewStateMonitor(session *Session, interval time.Duration, store *SnapshotStore, onChange func(StateChange)) *StateMonitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StateMonitor{
		session:  session,
		store:    store,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		onChange: onChange,
	}
}

// Start launches the polling goroutine.
func (m *StateMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("monitor already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	MonitorLog().Str("source", m.session.Source.ID()).Msg("State monitor started")
	return nil
}

// Stop cancels polling and waits for the goroutine to exit.
func (m *StateMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	MonitorLog().Str("source", m.session.Source.ID()).Msg("State monitor stopped")
}

// Wait blocks until the monitor stops on its own or ctx is done.
func (m *StateMonitor) Wait(ctx context.Context) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (m *StateMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		if _, _, err := m.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			LogWarn("monitor").Err(err).Str("source", m.session.Source.ID()).Msg("Poll failed")
		}
	}
}

// Poll refreshes the dumps once and reports whether focus or the resumed
// activity changed. The first poll always counts as a change.
func (m *StateMonitor) Poll(ctx context.Context) (StateChange, bool, error) {
	s := m.session
	if err := s.Windows.Update(ctx); err != nil {
		return StateChange{}, false, err
	}
	if err := s.Activities.Update(ctx); err != nil {
		return StateChange{}, false, err
	}

	focus := ""
	if w := s.Windows.State().CurrentFocus; w != nil {
		focus = w.Title
	}
	resumed := ""
	if a, err := s.Activities.ResumedActivity(ctx); err == nil && a != nil {
		resumed = a.Name()
	}

	m.mu.Lock()
	change := StateChange{
		Source:      s.Source.ID(),
		Time:        time.Now(),
		Focus:       focus,
		PrevFocus:   m.focus,
		Resumed:     resumed,
		PrevResumed: m.resumed,
	}
	changed := !m.polled || focus != m.focus || resumed != m.resumed
	m.polled, m.focus, m.resumed = true, focus, resumed
	m.mu.Unlock()

	if !changed {
		return change, false, nil
	}

	if m.store != nil {
		for _, snap := range []struct{ kind, raw string }{
			{KindWindow, s.Windows.Raw()},
			{KindActivity, s.Activities.Raw()},
		} {
			info, err := m.store.Save(change.Source, snap.kind, snap.raw)
			if err != nil {
				LogError("monitor").Err(err).Str("kind", snap.kind).Msg("Failed to save snapshot")
				continue
			}
			change.Snapshots = append(change.Snapshots, info)
		}
	}
	s.Controls.SetControlTree(nil)

	MonitorLog().
		Str("source", change.Source).
		Str("focus", focus).
		Str("resumed", resumed).
		Msg("State changed")
	if m.onChange != nil {
		m.onChange(change)
	}
	return change, true, nil
}
