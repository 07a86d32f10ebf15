package dumpsys

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	windowHeaderRe = regexp.MustCompile(`^  Window #(\d+) Window\{(\w{6,9}) (.*)\}:$`)
	windowRefRe    = regexp.MustCompile(`Window\{(\w{6,9}) (u\d+ )?(\S+).*\}`)
	shownFrameRe   = regexp.MustCompile(`mShownFrame=\[([-\d.]+),([-\d.]+)\]\[([-\d.]+),([-\d.]+)\]`)
	userPrefixRe   = regexp.MustCompile(`^u\d+$`)
)

// Titles of system windows that are never treated as popups.
var popupDenyList = map[string]bool{
	"Heads":                          true,
	"StatusBar":                      true,
	"InputMethod":                    true,
	"NavigationBar":                  true,
	"KeyguardScrim":                  true,
	"com.android.launcher2.Launcher": true,
	"RecentsPanel":                   true,
}

// Window is one entry of the window manager dump. Windows are identified by
// Hashcode; two descriptors with the same hashcode describe the same window.
type Window struct {
	ID       int
	Hashcode string
	// Title as printed, e.g. "com.foo/.Bar" or "StatusBar".
	Title string

	X, Y int
	// HasPosition is set once an mShownFrame line was seen.
	HasPosition bool
	W, H        int
	Package     string
	// Attached is the window this one is attached to, as a separate
	// descriptor. Use WindowState.Lookup to reach the listed instance.
	Attached *Window
}

// Name returns the title with the component short form expanded:
// "pkg/.Cls" gives "pkg.Cls" and "pkg/Cls" gives "Cls".
func (w *Window) Name() string {
	return qualifiedName(w.Title)
}

// Position returns x and y, zero when never recorded.
func (w *Window) Position() (int, int) { return w.X, w.Y }

// Size returns width and height, zero when never recorded.
func (w *Window) Size() (int, int) { return w.W, w.H }

// PackageName returns the owning package: the package attribute, else the
// package part of the title, else the attached window's package.
func (w *Window) PackageName() string {
	if w.Package != "" && w.Package != "null" {
		return w.Package
	}
	if pkg, _, ok := strings.Cut(w.Title, "/"); ok {
		return pkg
	}
	if w.Attached != nil {
		return w.Attached.PackageName()
	}
	return ""
}

// Equal compares windows by hashcode.
func (w *Window) Equal(o *Window) bool {
	if w == nil || o == nil {
		return false
	}
	return w.Hashcode == o.Hashcode
}

func (w *Window) String() string {
	return fmt.Sprintf("<Window id=%d hashcode=0x%s title=%s x=%d y=%d w=%d h=%d package=%s>",
		w.ID, w.Hashcode, w.Title, w.X, w.Y, w.W, w.H, w.Package)
}

// IsPopup guesses whether w is a popup rather than a full screen window,
// given the screen size from WindowState.ScreenSize.
func (w *Window) IsPopup(screenW, screenH int) bool {
	if w.Title == "SurfaceView" {
		return false
	}
	ww, hh := w.Size()
	if ww == 0 || hh == 0 || ww < 20 || hh < 20 {
		return false
	}
	if popupDenyList[w.Name()] {
		return false
	}
	if !w.HasPosition {
		return false
	}
	if w.X > 0 || w.Y > 0 {
		return true
	}
	if ww >= screenW && hh >= screenH-100 || ww >= screenH && hh >= screenW {
		return false
	}
	return true
}

// inherit fills the attributes w lacks from src.
func (w *Window) inherit(src *Window) {
	if src == nil || src == w {
		return
	}
	if !w.HasPosition && src.HasPosition {
		w.X, w.Y, w.HasPosition = src.X, src.Y, true
	}
	if w.W == 0 {
		w.W = src.W
	}
	if w.H == 0 {
		w.H = src.H
	}
	if w.Package == "" {
		w.Package = src.Package
	}
	if w.Attached == nil && src.Attached != nil {
		a := *src.Attached
		w.Attached = &a
	}
}

// refresh overwrites the attributes of a descriptor with those of the
// listed window it refers to.
func (w *Window) refresh(listed *Window) {
	if listed == nil || listed == w {
		return
	}
	if listed.HasPosition {
		w.X, w.Y, w.HasPosition = listed.X, listed.Y, true
	}
	if listed.W != 0 {
		w.W = listed.W
	}
	if listed.H != 0 {
		w.H = listed.H
	}
	if listed.Package != "" {
		w.Package = listed.Package
	}
}

// WindowState is the parsed result of one `dumpsys window` run.
type WindowState struct {
	Windows      []*Window
	CurrentFocus *Window
	InputTarget  *Window

	index map[string]*Window
}

// Lookup returns the listed window with the given hashcode.
func (s *WindowState) Lookup(hashcode string) (*Window, bool) {
	w, ok := s.index[hashcode]
	return w, ok
}

// FindByName returns the first listed window whose Name or Title is name.
func (s *WindowState) FindByName(name string) (*Window, bool) {
	for _, w := range s.Windows {
		if w.Name() == name || w.Title == name {
			return w, true
		}
	}
	return nil, false
}

// ScreenSize derives the portrait screen size from the largest window at
// the origin. Launcher windows are skipped since their height may include
// the navigation bar.
func (s *WindowState) ScreenSize() (int, int) {
	w, h := 0, 0
	for _, win := range s.Windows {
		if strings.HasSuffix(win.Name(), ".Launcher") {
			continue
		}
		if win.X != 0 || win.Y != 0 {
			continue
		}
		ww, hh := win.Size()
		if ww > hh {
			ww, hh = hh, ww
		}
		if ww > w {
			w = ww
		}
		if hh > h {
			h = hh
		}
	}
	return w, h
}

// IsPopup applies Window.IsPopup with this state's screen size.
func (s *WindowState) IsPopup(w *Window) bool {
	sw, sh := s.ScreenSize()
	return w.IsPopup(sw, sh)
}

// CarryOver copies attributes from prev into re-created windows of s with
// the same hashcode when the newer dump omitted them.
func (s *WindowState) CarryOver(prev *WindowState) {
	if prev == nil {
		return
	}
	for _, w := range s.Windows {
		if old, ok := prev.index[w.Hashcode]; ok {
			w.inherit(old)
		}
	}
	s.reconcile()
}

// reconcile copies listed attributes into the focus, input target and
// attached descriptors, which the dump prints without attributes.
func (s *WindowState) reconcile() {
	fill := func(w *Window) {
		if w == nil {
			return
		}
		if listed, ok := s.index[w.Hashcode]; ok {
			w.refresh(listed)
		}
	}
	for _, w := range s.Windows {
		fill(w.Attached)
	}
	fill(s.CurrentFocus)
	fill(s.InputTarget)
}

// ========================================
// Parser
// ========================================

type windowParseState int

const (
	windowIdle windowParseState = iota
	windowInWindow
)

func (s windowParseState) String() string {
	if s == windowInWindow {
		return "InWindow"
	}
	return "Idle"
}

type windowParser struct {
	state windowParseState
	cur   *Window
	out   *WindowState
	log   zerolog.Logger
}

// ParseWindowDump parses the output of `dumpsys window`. It never fails;
// unrecognised lines are skipped.
func ParseWindowDump(raw string, opts ...Option) *WindowState {
	o := newOptions(opts)
	p := &windowParser{
		out: &WindowState{index: make(map[string]*Window)},
		log: o.log.With().Str("parser", "window").Logger(),
	}
	for _, line := range splitLines(raw) {
		p.step(line)
	}
	p.out.reconcile()
	p.log.Debug().Int("windows", len(p.out.Windows)).Msg("window dump parsed")
	return p.out
}

// step is the single transition function of the window FSM.
func (p *windowParser) step(line string) {
	if m := windowHeaderRe.FindStringSubmatch(line); m != nil {
		p.openWindow(m)
		return
	}
	if strings.TrimSpace(line) == "" {
		return
	}
	if indent(line) < 4 {
		p.state = windowIdle
		p.cur = nil
	}

	switch {
	case strings.Contains(line, "mHoldScreenWindow"),
		strings.Contains(line, "mObscuringWindow"),
		strings.Contains(line, "mCurrentFocus"):
		p.setFocus(line)
	case strings.Contains(line, "mInputMethodTarget"),
		strings.Contains(line, "imeInputTarget"):
		p.out.InputTarget = parseWindowRef(line)
	case p.state == windowInWindow:
		p.continuation(line)
	}
}

func (p *windowParser) openWindow(m []string) {
	id, _ := strconv.Atoi(m[1])
	w := &Window{ID: id, Hashcode: m[2], Title: headerTitle(m[3])}
	p.out.Windows = append(p.out.Windows, w)
	if _, dup := p.out.index[w.Hashcode]; !dup {
		p.out.index[w.Hashcode] = w
	}
	p.cur = w
	p.state = windowInWindow
}

// headerTitle drops a leading user id ("u0 com.foo/.Bar") and keeps the
// first word of the title.
func headerTitle(s string) string {
	items := strings.Split(s, " ")
	if len(items) > 1 && userPrefixRe.MatchString(items[0]) {
		return items[1]
	}
	return items[0]
}

func (p *windowParser) setFocus(line string) {
	m := windowRefRe.FindStringSubmatch(line)
	if m == nil {
		p.log.Warn().Str("line", line).Msg("focus line without window reference")
		if strings.Contains(line, "mCurrentFocus") {
			p.out.CurrentFocus = nil
		}
		return
	}
	p.out.CurrentFocus = &Window{Hashcode: m[1], Title: m[3]}
}

// parseWindowRef reads an inline Window{hash [uN ]title ...} reference.
func parseWindowRef(line string) *Window {
	m := windowRefRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &Window{Hashcode: m[1], Title: m[3]}
}

func (p *windowParser) continuation(line string) {
	w := p.cur
	switch {
	case strings.Contains(line, "mShownFrame"):
		m := shownFrameRe.FindStringSubmatch(line)
		if m == nil {
			p.log.Debug().Str("line", line).Msg("unreadable mShownFrame")
			return
		}
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX != nil || errY != nil {
			return
		}
		w.X, w.Y = int(math.Floor(x)), int(math.Floor(y))
		w.HasPosition = true
	case strings.Contains(line, "mAttachedWindow"):
		w.Attached = parseWindowRef(line)
	default:
		scanFields(line, []string{"package", "w", "h"}, func(key, val string) {
			switch key {
			case "package":
				w.Package = val
			case "w", "h":
				n, err := strconv.Atoi(val)
				if err != nil {
					return
				}
				if key == "w" {
					w.W = n
				} else {
					w.H = n
				}
			}
		})
	}
}
