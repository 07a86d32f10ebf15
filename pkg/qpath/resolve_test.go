package qpath

import (
	"context"
	"errors"
	"testing"
)

func TestLocatorMatch(t *testing.T) {
	props := PropertyMap{
		"Id":      "btn_save",
		"Text":    "Save draft",
		"Type":    "Button",
		"Visible": "true",
		"Width":   "120",
		"Index":   "010",
	}

	tests := []struct {
		qpath string
		want  bool
	}{
		{`/Id='btn_save'`, true},
		{`/id='btn_save'`, true},
		{`/Id='btn'`, false},
		{`/Text~='^Save'`, true},
		{`/Text~='draft$' && Type='Button'`, true},
		{`/Text~='^draft'`, false},
		{`/Visible=True`, true},
		{`/Visible=False`, false},
		{`/Width=120`, true},
		{`/Width=120.0`, true},
		{`/Width=121`, false},
		{`/Index=10`, true},
		{`/Index=8`, false},
		{`/Missing='x'`, false},
		{`/Id='btn_save' && Instance=3 && MaxDepth=2 && UIType='GF'`, true},
	}

	for _, tt := range tests {
		t.Run(tt.qpath, func(t *testing.T) {
			q := MustParse(tt.qpath)
			if got := q.Locator(0).Match(props); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.qpath, got, tt.want)
			}
		})
	}
}

func TestSyntheticKeysCaseInsensitive(t *testing.T) {
	loc := MustParse(`/INSTANCE=2 && maxdepth=4`).Locator(0)
	if n, ok := loc.Instance(); !ok || n != 2 {
		t.Errorf("Expected Instance 2, got %d (%v)", n, ok)
	}
	if n, ok := loc.MaxDepth(); !ok || n != 4 {
		t.Errorf("Expected MaxDepth 4, got %d (%v)", n, ok)
	}
	if !loc.Match(PropertyMap{}) {
		t.Error("Synthetic-only locator should match any control")
	}
}

// fakeIndex returns all candidates for a chain without Instance and the
// i-th candidate for Instance=i.
type fakeIndex struct {
	candidates []int64
	calls      int
}

func (f *fakeIndex) QueryControl(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error) {
	f.calls++
	last := locators[len(locators)-1]
	if i, ok := last.Instance(); ok {
		if i >= 0 && i < len(f.candidates) {
			return []int64{f.candidates[i]}, nil
		}
		return nil, nil
	}
	return f.candidates, nil
}

func TestDisambiguateConverges(t *testing.T) {
	idx := &fakeIndex{candidates: []int64{10, 20, 30}}
	m := NewMatcher(idx)

	got, err := m.MatchOrDisambiguate(context.Background(), "Main", 0, MustParse(`/Type='TextView'`), 20)
	if err != nil {
		t.Fatalf("MatchOrDisambiguate failed: %v", err)
	}
	if got.Hashcode != 20 {
		t.Errorf("Expected hashcode 20, got %d", got.Hashcode)
	}
	if n, ok := got.Path.Locator(0).Instance(); !ok || n != 1 {
		t.Errorf("Expected Instance=1, got %d (%v)", n, ok)
	}
	if extra := idx.calls - 1; extra != 2 {
		t.Errorf("Expected exactly 2 extra queries, got %d", extra)
	}
}

func TestMatchUnique(t *testing.T) {
	idx := &fakeIndex{candidates: []int64{42}}
	q := MustParse(`/Id='only'`)

	got, err := NewMatcher(idx).Locate(context.Background(), "Main", 0, q)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got.Hashcode != 42 || got.Path != q {
		t.Errorf("Unexpected match %+v", got)
	}
}

func TestMatchAmbiguousWithoutTarget(t *testing.T) {
	idx := &fakeIndex{candidates: []int64{10, 20, 30}}

	_, err := NewMatcher(idx).Locate(context.Background(), "Main", 0, MustParse(`/Type='TextView'`))
	var amb *AmbiguousControlError
	if !errors.As(err, &amb) {
		t.Fatalf("Expected AmbiguousControlError, got %v", err)
	}
	if len(amb.Candidates) != 3 {
		t.Errorf("Expected 3 candidates, got %v", amb.Candidates)
	}
	if idx.calls != 1 {
		t.Errorf("Expected a single query, got %d", idx.calls)
	}
}

func TestMatchAmbiguousTargetNotAmongCandidates(t *testing.T) {
	idx := &fakeIndex{candidates: []int64{10, 20, 30}}

	_, err := NewMatcher(idx).MatchOrDisambiguate(context.Background(), "Main", 0, MustParse(`/Type='TextView'`), 99)
	if !IsAmbiguous(err) {
		t.Fatalf("Expected AmbiguousControlError, got %v", err)
	}
	if idx.calls != 4 {
		t.Errorf("Expected 4 queries, got %d", idx.calls)
	}
}

func TestMatchNotFound(t *testing.T) {
	idx := &fakeIndex{}

	_, err := NewMatcher(idx).Locate(context.Background(), "Main", 0, MustParse(`/Id='gone'`))
	var nf *ControlNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected ControlNotFoundError, got %v", err)
	}
	if nf.FailedAt != -1 || nf.Unresolved != "" {
		t.Errorf("Undiagnosed error should not carry a position: %+v", nf)
	}
	if IsAmbiguous(err) {
		t.Error("Not found must be distinct from ambiguous")
	}
}

func TestDiagnoseUnresolvedSuffix(t *testing.T) {
	// only the first two locators resolve
	querier := ControlQuerierFunc(func(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error) {
		if len(locators) <= 2 {
			return []int64{7}, nil
		}
		return nil, nil
	})
	q := MustParse(`/Id='root' /Id='list' /Id='item' /Text='x'`)

	_, err := NewMatcher(querier, WithDiagnosis()).Locate(context.Background(), "Main", 0, q)
	var nf *ControlNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expected ControlNotFoundError, got %v", err)
	}
	if nf.FailedAt != 2 {
		t.Errorf("Expected FailedAt 2, got %d", nf.FailedAt)
	}
	want := `/ Id = 'item'/ Text = 'x'`
	if nf.Unresolved != want {
		t.Errorf("Expected unresolved %q, got %q", want, nf.Unresolved)
	}
}

func TestQueryErrorPropagates(t *testing.T) {
	boom := errors.New("driver gone")
	querier := ControlQuerierFunc(func(ctx context.Context, window string, root int64, locators []Locator) ([]int64, error) {
		return nil, boom
	})

	_, err := NewMatcher(querier).Locate(context.Background(), "Main", 0, MustParse(`/Id='a'`))
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped querier error, got %v", err)
	}
}
