package qpath

import (
	"regexp"
	"strings"
)

// Properties is the property bag of a candidate control.
type Properties interface {
	// Property returns the value of the named property. Implementations
	// should compare names case-insensitively.
	Property(name string) (string, bool)
}

// PropertyMap is a Properties backed by a map. Lookups fall back to a
// case-insensitive scan when the exact key is absent.
type PropertyMap map[string]string

func (m PropertyMap) Property(name string) (string, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Match reports whether every non-synthetic predicate of l holds for props.
// A property the candidate does not have never matches.
func (l Locator) Match(props Properties) bool {
	for _, p := range l.preds {
		if p.Synthetic() {
			continue
		}
		actual, ok := props.Property(p.Name)
		if !ok {
			return false
		}
		if !p.Match(actual) {
			return false
		}
	}
	return true
}

// Match evaluates the predicate against one property value.
func (p Predicate) Match(actual string) bool {
	switch p.Op {
	case OpEqual:
		return p.Value.Matches(actual)
	case OpMatch:
		re := p.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(p.Value.Text()); err != nil {
				return false
			}
		}
		return re.MatchString(actual)
	}
	return false
}

// Instance returns the value of the Instance predicate, if present.
func (l Locator) Instance() (int, bool) {
	return l.intSynthetic(KeyInstance)
}

// MaxDepth returns the value of the MaxDepth predicate, if present.
func (l Locator) MaxDepth() (int, bool) {
	return l.intSynthetic(KeyMaxDepth)
}

// UIType returns the value of the UIType predicate, if present.
func (l Locator) UIType() (string, bool) {
	for _, p := range l.preds {
		if strings.EqualFold(p.Name, KeyUIType) {
			return p.Value.Text(), true
		}
	}
	return "", false
}

func (l Locator) intSynthetic(key string) (int, bool) {
	for _, p := range l.preds {
		if !strings.EqualFold(p.Name, key) {
			continue
		}
		switch p.Value.Kind {
		case KindInt:
			return int(p.Value.Int), true
		case KindFloat:
			return int(p.Value.Float), true
		case KindString:
			// Instance='2' is accepted as well as Instance=2
			if v, err := parseLiteral(p.Value.Str); err == nil && v.Kind == KindInt {
				return int(v.Int), true
			}
		}
		return 0, false
	}
	return 0, false
}
