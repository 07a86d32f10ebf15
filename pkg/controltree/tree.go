// Package controltree keeps a snapshot of the view hierarchy of one or more
// windows and answers QPath locator chains against it.
package controltree

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"AndroidUISpy/pkg/qpath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Control is one node of a window's view tree.
type Control struct {
	Hashcode int64
	Window   string
	Props    qpath.PropertyMap
	Children []*Control
	Parent   *Control

	order int
}

// Property implements qpath.Properties.
func (c *Control) Property(name string) (string, bool) {
	return c.Props.Property(name)
}

// ID returns the short resource id, empty when the control has none.
func (c *Control) ID() string {
	id := c.Props["Id"]
	if id == "None" {
		return ""
	}
	return id
}

// Depth returns the distance to the window root, which has depth 0.
func (c *Control) Depth() int {
	d := 0
	for p := c.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

func (c *Control) String() string {
	return fmt.Sprintf("<Control 0x%x id=%s type=%s text=%q>", c.Hashcode, c.ID(), c.Props["Type"], c.Props["Text"])
}

// Tree indexes the control trees of several windows. It is safe for
// concurrent queries once built.
type Tree struct {
	windows map[string][]*Control
	titles  []string
	byHash  map[int64]*Control
	next    int

	results *lru.Cache[string, []int64]
}

// New returns an empty tree.
func New() *Tree {
	cache, _ := lru.New[string, []int64](512)
	return &Tree{
		windows: make(map[string][]*Control),
		byHash:  make(map[int64]*Control),
		results: cache,
	}
}

// AddWindow registers the view tree of a window. Parent links, document
// order and the hashcode index are filled in. Adding a second tree under
// the same title keeps both; queries on the title search them in the
// order they were added.
func (t *Tree) AddWindow(title string, root *Control) {
	if _, ok := t.windows[title]; !ok {
		t.titles = append(t.titles, title)
	}
	t.windows[title] = append(t.windows[title], root)
	var walk func(c, parent *Control)
	walk = func(c, parent *Control) {
		c.Parent = parent
		c.Window = title
		c.order = t.next
		t.next++
		if c.Props == nil {
			c.Props = qpath.PropertyMap{}
		}
		if _, dup := t.byHash[c.Hashcode]; !dup {
			t.byHash[c.Hashcode] = c
		}
		for _, child := range c.Children {
			walk(child, c)
		}
	}
	walk(root, nil)
	t.results.Purge()
}

// Windows returns the window titles in insertion order.
func (t *Tree) Windows() []string {
	return append([]string(nil), t.titles...)
}

// Root returns the first root control of a window.
func (t *Tree) Root(window string) (*Control, bool) {
	roots := t.windows[window]
	if len(roots) == 0 {
		return nil, false
	}
	return roots[0], true
}

// Roots returns every root control registered under a window title.
func (t *Tree) Roots(window string) []*Control {
	return append([]*Control(nil), t.windows[window]...)
}

// Find returns the control with the given hashcode.
func (t *Tree) Find(hashcode int64) (*Control, bool) {
	c, ok := t.byHash[hashcode]
	return c, ok
}

// PathOf returns the controls from the window root down to hashcode.
func (t *Tree) PathOf(hashcode int64) []*Control {
	c, ok := t.byHash[hashcode]
	if !ok {
		return nil
	}
	var path []*Control
	for ; c != nil; c = c.Parent {
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Walk visits the controls of a window in document order.
func (t *Tree) Walk(window string, fn func(c *Control) bool) {
	var walk func(c *Control) bool
	walk = func(c *Control) bool {
		if !fn(c) {
			return false
		}
		for _, child := range c.Children {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	for _, root := range t.windows[window] {
		if !walk(root) {
			return
		}
	}
}

// QueryControl implements qpath.ControlQuerier.
//
// The first locator searches below root (or the whole window, its root
// included, when root is 0) at any depth unless it carries MaxDepth. Depth
// is counted from root, or from the window root when root is 0, so the
// children of the window root are at depth 1 either way. Each following locator
// searches below every match of the previous one, MaxDepth levels deep
// (1 when absent). Matches are returned in document order; Instance=i then
// keeps only the i-th, counting from the end when negative.
func (t *Tree) QueryControl(ctx context.Context, window string, root int64, locators []qpath.Locator) ([]int64, error) {
	if len(locators) == 0 {
		return nil, fmt.Errorf("empty locator chain")
	}
	key := cacheKey(window, root, locators)
	if hit, ok := t.results.Get(key); ok {
		return hit, nil
	}

	var parents []*Control
	includeSelf := false
	if root != 0 {
		c, ok := t.byHash[root]
		if !ok {
			return nil, fmt.Errorf("root control %x not found", root)
		}
		parents = []*Control{c}
	} else {
		roots, ok := t.windows[window]
		if !ok {
			return nil, fmt.Errorf("window %q not found", window)
		}
		parents = roots
		includeSelf = true
	}

	for i, loc := range locators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		maxDepth, ok := loc.MaxDepth()
		if !ok {
			if i == 0 {
				maxDepth = -1
			} else {
				maxDepth = 1
			}
		}
		matches := t.search(parents, loc, maxDepth, includeSelf && i == 0)
		if n, ok := loc.Instance(); ok {
			if n < 0 {
				n += len(matches)
			}
			if n < 0 || n >= len(matches) {
				matches = nil
			} else {
				matches = matches[n : n+1]
			}
		}
		if len(matches) == 0 {
			t.results.Add(key, nil)
			return nil, nil
		}
		parents = matches
	}

	out := make([]int64, len(parents))
	for i, c := range parents {
		out[i] = c.Hashcode
	}
	t.results.Add(key, out)
	return out, nil
}

// search returns the de-duplicated descendants of parents that match loc,
// sorted in document order. Depth counts from the parents, which have depth
// 0 and are candidates themselves only with includeSelf. maxDepth < 0 means
// unlimited.
func (t *Tree) search(parents []*Control, loc qpath.Locator, maxDepth int, includeSelf bool) []*Control {
	seen := make(map[*Control]bool)
	var out []*Control
	var walk func(c *Control, depth int)
	walk = func(c *Control, depth int) {
		if maxDepth >= 0 && depth > maxDepth {
			return
		}
		if (depth > 0 || includeSelf) && !seen[c] && loc.Match(c) {
			seen[c] = true
			out = append(out, c)
		}
		for _, child := range c.Children {
			walk(child, depth+1)
		}
	}
	for _, p := range parents {
		walk(p, 0)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

func cacheKey(window string, root int64, locators []qpath.Locator) string {
	var b strings.Builder
	b.WriteString(window)
	b.WriteByte(0)
	b.WriteString(strconv.FormatInt(root, 16))
	for _, l := range locators {
		b.WriteByte(0)
		b.WriteString(l.String())
	}
	return b.String()
}
