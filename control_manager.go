package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"AndroidUISpy/pkg/cache"
	"AndroidUISpy/pkg/controltree"
	"AndroidUISpy/pkg/dumpsys"
	"AndroidUISpy/pkg/qpath"
	"AndroidUISpy/pkg/types"
)

// ========================================
// ControlManager - 控件管理
// 关联窗口/进程, 加载控件树并用 QPath 定位控件
// ========================================

const systemUIProcess = "com.android.systemui"

// ControlManager answers process and control queries for one source.
type ControlManager struct {
	source     DumpSource
	windows    *WindowManager
	activities *ActivityManager
	cache      *cache.Service

	mu   sync.Mutex
	tree *controltree.Tree
}

// NewControlManager wires the managers of one source. cache may be nil.
func NewControlManager(source DumpSource, wm *WindowManager, am *ActivityManager, c *cache.Service) *ControlManager {
	return &ControlManager{source: source, windows: wm, activities: am, cache: c}
}

// Update refreshes the window and activity dumps and drops the control tree.
func (m *ControlManager) Update(ctx context.Context) error {
	if err := m.windows.Update(ctx); err != nil {
		return err
	}
	if err := m.activities.Update(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.tree = nil
	m.mu.Unlock()
	return nil
}

// WindowProcess resolves the process hosting a window given by hashcode or
// title. The attached window is used when there is one; the process is the
// one of the activity with the window's name, falling back to the window
// package.
func (m *ControlManager) WindowProcess(ctx context.Context, hashOrTitle string) (types.WindowProcess, error) {
	res := types.WindowProcess{Window: hashOrTitle}
	if hashOrTitle == "StatusBar" {
		res.Process = systemUIProcess
		return res, nil
	}
	if m.cache != nil {
		if p, ok := m.cache.GetProcess(m.source.ID(), hashOrTitle); ok {
			res.Process, res.Cached = p, true
			return res, nil
		}
	}

	w, err := m.windows.FindWindow(ctx, hashOrTitle)
	if err != nil {
		return res, err
	}
	target := w
	if w.Attached != nil {
		if listed, ok := m.windows.State().Lookup(w.Attached.Hashcode); ok {
			target = listed
		} else {
			target = w.Attached
		}
	}

	act, err := m.activities.FindActivity(ctx, target.Name())
	if err != nil {
		return res, err
	}
	if act != nil && act.ProcessName() != "" {
		res.Process = act.ProcessName()
		if m.cache != nil {
			m.cache.SetProcess(m.source.ID(), hashOrTitle, res.Process)
		}
		ControlLog().Str("window", hashOrTitle).Str("process", res.Process).Msg("Resolved window process")
		return res, nil
	}

	if pkg := target.PackageName(); pkg != "" {
		LogWarn("control").Str("window", target.Title).Msg("No activity for window, using package name as process")
		res.Process = pkg
		return res, nil
	}
	return res, fmt.Errorf("process of window %q not found", hashOrTitle)
}

// ProbeWindows lists the windows whose controls are worth inspecting: the
// windows of the focused package plus popups of other packages. System UI
// windows are left out.
func (m *ControlManager) ProbeWindows(ctx context.Context) ([]*dumpsys.Window, error) {
	focus, err := m.windows.CurrentWindow(ctx)
	if err != nil {
		return nil, err
	}
	if focus == nil {
		return nil, fmt.Errorf("no focused window")
	}
	pkg := focus.PackageName()
	state := m.windows.State()

	var out []*dumpsys.Window
	for _, w := range state.Windows {
		wp := w.PackageName()
		if wp == systemUIProcess {
			continue
		}
		if wp != pkg && !state.IsPopup(w) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// ControlTree returns the control tree, dumping it on first use. A
// uiautomator dump only covers the focused window, which names the tree.
func (m *ControlManager) ControlTree(ctx context.Context) (*controltree.Tree, error) {
	m.mu.Lock()
	t := m.tree
	m.mu.Unlock()
	if t != nil {
		return t, nil
	}

	timer := StartOperation("control", "control_tree").AddDetail("source", m.source.ID())
	data, err := m.source.DumpUIHierarchy(ctx)
	if err != nil {
		timer.EndWithError(err)
		return nil, fmt.Errorf("dump UI hierarchy: %w", err)
	}
	title := ""
	if focus, err := m.windows.CurrentWindow(ctx); err == nil && focus != nil {
		title = focus.Title
	}
	t, err = LoadControlTree(data, title)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}
	timer.AddDetail("windows", len(t.Windows())).End()

	m.mu.Lock()
	m.tree = t
	m.mu.Unlock()
	return t, nil
}

// SetControlTree replaces the control tree, e.g. with one read from a file.
func (m *ControlManager) SetControlTree(t *controltree.Tree) {
	m.mu.Lock()
	m.tree = t
	m.mu.Unlock()
}

// LoadControlTree parses either a JSON control tree or a uiautomator XML
// dump. window names the XML tree; empty uses the root package.
func LoadControlTree(data, window string) (*controltree.Tree, error) {
	if strings.HasPrefix(strings.TrimSpace(data), "{") {
		return controltree.FromJSON([]byte(data))
	}
	return controltree.FromUIAutomatorXML([]byte(data), window)
}

// Locate resolves a QPath against the control tree.
func (m *ControlManager) Locate(ctx context.Context, req types.LocateRequest) (types.ControlMatch, error) {
	q, err := qpath.Parse(req.QPath)
	if err != nil {
		return types.ControlMatch{}, err
	}
	t, err := m.ControlTree(ctx)
	if err != nil {
		return types.ControlMatch{}, err
	}
	window, err := pickWindow(t, req.Window)
	if err != nil {
		return types.ControlMatch{}, err
	}

	var opts []qpath.MatcherOption
	if req.Diagnose {
		opts = append(opts, qpath.WithDiagnosis())
	}
	matcher := qpath.NewMatcher(t, opts...)

	var res qpath.Match
	if req.Target != 0 {
		res, err = matcher.MatchOrDisambiguate(ctx, window, req.Root, q, req.Target)
	} else {
		res, err = matcher.Locate(ctx, window, req.Root, q)
	}
	if err != nil {
		ControlLog().Str("window", window).Str("qpath", q.String()).Err(err).Msg("Locate failed")
		return types.ControlMatch{}, err
	}
	return controlMatch(t, window, res), nil
}

// GenerateQPath builds a unique QPath for a control of the tree.
func (m *ControlManager) GenerateQPath(ctx context.Context, hashcode int64) (types.ControlMatch, error) {
	t, err := m.ControlTree(ctx)
	if err != nil {
		return types.ControlMatch{}, err
	}
	q, err := t.GenerateQPath(ctx, hashcode)
	if err != nil {
		return types.ControlMatch{}, err
	}
	c, _ := t.Find(hashcode)
	return controlMatch(t, c.Window, qpath.Match{Hashcode: hashcode, Path: q}), nil
}

func pickWindow(t *controltree.Tree, window string) (string, error) {
	windows := t.Windows()
	if window == "" {
		if len(windows) == 0 {
			return "", fmt.Errorf("control tree has no windows")
		}
		return windows[0], nil
	}
	if _, ok := t.Root(window); !ok {
		return "", fmt.Errorf("window %q not in control tree (have %s)", window, strings.Join(windows, ", "))
	}
	return window, nil
}

func controlMatch(t *controltree.Tree, window string, res qpath.Match) types.ControlMatch {
	out := types.ControlMatch{
		Window:   window,
		Hashcode: fmt.Sprintf("%x", res.Hashcode),
		QPath:    res.Path.String(),
	}
	if c, ok := t.Find(res.Hashcode); ok {
		out.Props = make(map[string]string, len(c.Props))
		for k, v := range c.Props {
			if v != "" {
				out.Props[k] = v
			}
		}
	}
	return out
}
