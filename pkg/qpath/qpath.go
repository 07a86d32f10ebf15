// Package qpath implements the QPath control query language: a separator
// delimited chain of locators, each a conjunction of `name OP value`
// predicates, used to address one control in a window's view tree.
//
//	/Id="title" && Type="TextView" /Text~="^Save"
package qpath

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Op is a predicate operator.
type Op string

const (
	// OpEqual compares the literal with the property value.
	OpEqual Op = "="
	// OpMatch searches the property value with the literal as a regular expression.
	OpMatch Op = "~="
)

// PropertySep joins predicates inside one locator.
const PropertySep = "&&"

// Synthetic predicate names. They are inserted by generators and consumed by
// the control index; they are never matched against a control's properties.
const (
	KeyInstance = "Instance"
	KeyMaxDepth = "MaxDepth"
	KeyUIType   = "UIType"
)

var predicateRe = regexp.MustCompile(`^(\w+)\s*([=~!<>]+)\s*(.+)$`)

// Predicate is one `name OP value` term.
type Predicate struct {
	Name  string
	Op    Op
	Value Value

	re *regexp.Regexp
}

// String renders the predicate as `name OP literal`.
func (p Predicate) String() string {
	return p.Name + " " + string(p.Op) + " " + p.Value.Literal()
}

// Equal reports whether two predicates have the same name, operator and value.
func (p Predicate) Equal(o Predicate) bool {
	return p.Name == o.Name && p.Op == o.Op && p.Value.Equal(o.Value)
}

// Synthetic reports whether the predicate is one of Instance, MaxDepth or UIType.
func (p Predicate) Synthetic() bool {
	return isSynthetic(p.Name)
}

func isSynthetic(name string) bool {
	return strings.EqualFold(name, KeyInstance) ||
		strings.EqualFold(name, KeyMaxDepth) ||
		strings.EqualFold(name, KeyUIType)
}

// Locator is one path segment. Predicates keep the order in which their names
// first appeared; a repeated name replaces the earlier value in place.
type Locator struct {
	preds []Predicate
}

// NewLocator builds a locator from predicates, applying the same
// last-wins rule as the parser.
func NewLocator(preds ...Predicate) Locator {
	var l Locator
	for _, p := range preds {
		l = l.with(p)
	}
	return l
}

// Predicates returns a copy of the locator's predicates.
func (l Locator) Predicates() []Predicate {
	out := make([]Predicate, len(l.preds))
	copy(out, l.preds)
	return out
}

// Len returns the number of predicates.
func (l Locator) Len() int { return len(l.preds) }

// Get returns the predicate with the given name.
func (l Locator) Get(name string) (Predicate, bool) {
	for _, p := range l.preds {
		if p.Name == name {
			return p, true
		}
	}
	return Predicate{}, false
}

// With returns a copy of l with name set to value using the "=" operator.
func (l Locator) With(name string, value Value) Locator {
	return l.with(Predicate{Name: name, Op: OpEqual, Value: value})
}

func (l Locator) with(p Predicate) Locator {
	preds := make([]Predicate, len(l.preds), len(l.preds)+1)
	copy(preds, l.preds)
	for i := range preds {
		if preds[i].Name == p.Name {
			preds[i] = p
			return Locator{preds: preds}
		}
	}
	return Locator{preds: append(preds, p)}
}

// Equal compares two locators predicate by predicate.
func (l Locator) Equal(o Locator) bool {
	if len(l.preds) != len(o.preds) {
		return false
	}
	for i := range l.preds {
		if !l.preds[i].Equal(o.preds[i]) {
			return false
		}
	}
	return true
}

func (l Locator) String() string {
	parts := make([]string, len(l.preds))
	for i, p := range l.preds {
		parts[i] = p.String()
	}
	return strings.Join(parts, " "+PropertySep+" ")
}

// QPath is a parsed, immutable query path.
type QPath struct {
	source   string
	sep      string
	locators []Locator
}

// Parse parses a QPath string. The first non-blank character is the
// separator for the rest of the path.
func Parse(text string) (*QPath, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, newSyntaxError(text, "empty qpath")
	}
	_, size := utf8.DecodeRuneInString(s)
	sep := s[:size]

	segments := splitUnquoted(s[size:], sep)
	locators := make([]Locator, 0, len(segments))
	for _, seg := range segments {
		loc, err := parseLocator(seg)
		if err != nil {
			return nil, err
		}
		locators = append(locators, loc)
	}
	return &QPath{source: text, sep: sep, locators: locators}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(text string) *QPath {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

func parseLocator(seg string) (Locator, error) {
	var l Locator
	for _, raw := range splitUnquoted(seg, PropertySep) {
		prop := strings.TrimSpace(raw)
		if prop == "" {
			return Locator{}, newSyntaxError(seg, "empty predicate")
		}
		p, err := parsePredicate(prop)
		if err != nil {
			return Locator{}, err
		}
		l = l.with(p)
	}
	return l, nil
}

func parsePredicate(prop string) (Predicate, error) {
	m := predicateRe.FindStringSubmatch(prop)
	if m == nil {
		return Predicate{}, newSyntaxError(prop, "predicate does not follow `name OP value`")
	}
	name, op, src := m[1], Op(m[2]), m[3]
	if op != OpEqual && op != OpMatch {
		return Predicate{}, newOperatorError(prop, string(op))
	}
	v, err := parseLiteral(src)
	if err != nil {
		return Predicate{}, newValueError(prop, err)
	}
	p := Predicate{Name: name, Op: op, Value: v}
	if op == OpMatch {
		re, err := regexp.Compile(v.Text())
		if err != nil {
			return Predicate{}, newValueError(prop, err)
		}
		p.re = re
	}
	return p, nil
}

// splitUnquoted splits s on sep, ignoring occurrences inside single or
// double quoted literals.
func splitUnquoted(s, sep string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// Source returns the text the path was parsed from.
func (q *QPath) Source() string {
	if q == nil {
		return ""
	}
	return q.source
}

// Separator returns the path separator.
func (q *QPath) Separator() string { return q.sep }

// Len returns the number of locators.
func (q *QPath) Len() int { return len(q.locators) }

// Locators returns a copy of the locator chain.
func (q *QPath) Locators() []Locator {
	out := make([]Locator, len(q.locators))
	copy(out, q.locators)
	return out
}

// Locator returns the i-th locator.
func (q *QPath) Locator(i int) Locator { return q.locators[i] }

// String returns the canonical form: `SEP name OP 'value' && ...` per locator.
func (q *QPath) String() string {
	return q.join(q.locators)
}

func (q *QPath) join(locs []Locator) string {
	var b strings.Builder
	for _, l := range locs {
		b.WriteString(q.sep)
		b.WriteByte(' ')
		b.WriteString(l.String())
	}
	return b.String()
}

// Suffix renders the locators from index i on, e.g. for reporting the part
// of a path that could not be resolved.
func (q *QPath) Suffix(i int) string {
	if i < 0 || i >= len(q.locators) {
		return ""
	}
	return q.join(q.locators[i:])
}

// Equal reports whether two paths have the same separator and locators.
func (q *QPath) Equal(o *QPath) bool {
	if q == nil || o == nil {
		return q == o
	}
	if q.sep != o.sep || len(q.locators) != len(o.locators) {
		return false
	}
	for i := range q.locators {
		if !q.locators[i].Equal(o.locators[i]) {
			return false
		}
	}
	return true
}

// WithInstance returns a copy of q whose last locator carries Instance=i.
func (q *QPath) WithInstance(i int) *QPath {
	return q.withLast(q.locators[len(q.locators)-1].With(KeyInstance, IntValue(int64(i))))
}

// WithMaxDepth returns a copy of q whose last locator carries MaxDepth=d.
func (q *QPath) WithMaxDepth(d int) *QPath {
	return q.withLast(q.locators[len(q.locators)-1].With(KeyMaxDepth, IntValue(int64(d))))
}

func (q *QPath) withLast(last Locator) *QPath {
	locs := q.Locators()
	locs[len(locs)-1] = last
	out := &QPath{sep: q.sep, locators: locs}
	out.source = out.String()
	return out
}

// Prefix returns the path made of the first n locators.
func (q *QPath) Prefix(n int) *QPath {
	if n > len(q.locators) {
		n = len(q.locators)
	}
	out := &QPath{sep: q.sep, locators: q.Locators()[:n]}
	out.source = out.String()
	return out
}

// Append returns a new path with the locators of q followed by locs.
func (q *QPath) Append(locs ...Locator) *QPath {
	out := &QPath{sep: q.sep, locators: append(q.Locators(), locs...)}
	out.source = out.String()
	return out
}

// New builds a path from already constructed locators.
func New(sep string, locs ...Locator) *QPath {
	out := &QPath{sep: sep, locators: append([]Locator(nil), locs...)}
	out.source = out.String()
	return out
}
