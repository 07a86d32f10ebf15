package qpath

import (
	"context"
	"fmt"
)

// ControlQuerier evaluates a locator chain against a window's control tree.
// An empty result means not found, one hashcode a unique match and several
// an ambiguous match. Results must come back in a stable order for the same
// unchanged tree, because Instance=i selects the i-th of them.
type ControlQuerier interface {
	QueryControl(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error)
}

// ControlQuerierFunc adapts a function to ControlQuerier.
type ControlQuerierFunc func(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error)

func (f ControlQuerierFunc) QueryControl(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error) {
	return f(ctx, window, root, locators)
}

// Match is a resolved control together with the path that selects it
// uniquely. Path differs from the input when an Instance was appended.
type Match struct {
	Hashcode int64
	Path     *QPath
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithDiagnosis makes the matcher probe path prefixes when a path resolves
// to nothing, so the returned ControlNotFoundError names the unresolved part.
// This costs one query per locator.
func WithDiagnosis() MatcherOption {
	return func(m *Matcher) { m.diagnose = true }
}

// Matcher resolves QPaths through a ControlQuerier.
type Matcher struct {
	querier  ControlQuerier
	diagnose bool
}

// NewMatcher creates a Matcher.
func NewMatcher(q ControlQuerier, opts ...MatcherOption) *Matcher {
	m := &Matcher{querier: q}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Query returns the raw candidates of q.
func (m *Matcher) Query(ctx context.Context, window string, root int64, q *QPath) ([]int64, error) {
	hashes, err := m.querier.QueryControl(ctx, window, root, q.locators)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Source(), err)
	}
	return hashes, nil
}

// Locate resolves q to exactly one control.
func (m *Matcher) Locate(ctx context.Context, window string, root int64, q *QPath) (Match, error) {
	return m.MatchOrDisambiguate(ctx, window, root, q, 0)
}

// MatchOrDisambiguate resolves q to one control. When q is ambiguous and
// target is non-zero, Instance=0,1,... is appended to the last locator until
// the query yields target; the returned Match carries the extended path.
func (m *Matcher) MatchOrDisambiguate(ctx context.Context, window string, root int64, q *QPath, target int64) (Match, error) {
	hashes, err := m.Query(ctx, window, root, q)
	if err != nil {
		return Match{}, err
	}

	switch len(hashes) {
	case 0:
		return Match{}, m.notFound(ctx, window, root, q)
	case 1:
		return Match{Hashcode: hashes[0], Path: q}, nil
	}

	if target == 0 {
		return Match{}, &AmbiguousControlError{QPath: q, Candidates: hashes}
	}
	for i := range hashes {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		candidate := q.WithInstance(i)
		got, err := m.Query(ctx, window, root, candidate)
		if err != nil {
			return Match{}, err
		}
		if len(got) == 1 && got[0] == target {
			return Match{Hashcode: target, Path: candidate}, nil
		}
	}
	return Match{}, &AmbiguousControlError{QPath: q, Candidates: hashes}
}

func (m *Matcher) notFound(ctx context.Context, window string, root int64, q *QPath) error {
	if !m.diagnose {
		return &ControlNotFoundError{QPath: q, FailedAt: -1}
	}
	nf, err := m.Diagnose(ctx, window, root, q)
	if err != nil {
		return err
	}
	return nf
}

// Diagnose finds the first locator at which q stops matching by querying
// q[:1], q[:2], ... until one returns no control.
func (m *Matcher) Diagnose(ctx context.Context, window string, root int64, q *QPath) (*ControlNotFoundError, error) {
	failed := q.Len() - 1
	for n := 1; n <= q.Len(); n++ {
		hashes, err := m.Query(ctx, window, root, q.Prefix(n))
		if err != nil {
			return nil, err
		}
		if len(hashes) == 0 {
			failed = n - 1
			break
		}
	}
	return &ControlNotFoundError{QPath: q, FailedAt: failed, Unresolved: q.Suffix(failed)}, nil
}
