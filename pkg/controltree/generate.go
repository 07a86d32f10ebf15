package controltree

import (
	"context"
	"fmt"

	"AndroidUISpy/pkg/qpath"
)

const pathSep = "/"

func eq(name, value string) qpath.Predicate {
	return qpath.Predicate{Name: name, Op: qpath.OpEqual, Value: qpath.StringValue(value)}
}

// GenerateQPath builds a QPath that selects the control uniquely within
// its window. It tries, in order: the control's own Id, Text and Type; a
// chain of ancestor Ids; and finally Instance disambiguation of the
// attribute path.
func (t *Tree) GenerateQPath(ctx context.Context, hashcode int64) (*qpath.QPath, error) {
	c, ok := t.Find(hashcode)
	if !ok {
		return nil, fmt.Errorf("control %x not found", hashcode)
	}
	m := qpath.NewMatcher(t)

	var loc qpath.Locator
	for _, p := range attrPredicates(c) {
		loc = qpath.NewLocator(append(loc.Predicates(), p)...)
		q := qpath.New(pathSep, loc)
		if t.selects(ctx, m, c, q) {
			return q, nil
		}
	}

	if q := t.idChain(ctx, m, c); q != nil {
		return q, nil
	}

	if loc.Len() == 0 {
		loc = qpath.NewLocator(eq("Type", c.Props["Type"]))
	}
	res, err := m.MatchOrDisambiguate(ctx, c.Window, 0, qpath.New(pathSep, loc), hashcode)
	if err != nil {
		return nil, err
	}
	return res.Path, nil
}

// attrPredicates lists Id, Text and Type in the order they are tried.
// Short obfuscated type names are left out.
func attrPredicates(c *Control) []qpath.Predicate {
	var preds []qpath.Predicate
	if id := c.ID(); id != "" {
		preds = append(preds, eq("Id", id))
	}
	if text := c.Props["Text"]; text != "" {
		preds = append(preds, eq("Text", text))
	}
	if typ := c.Props["Type"]; len(typ) > 3 {
		preds = append(preds, eq("Type", typ))
	}
	return preds
}

func (t *Tree) selects(ctx context.Context, m *qpath.Matcher, c *Control, q *qpath.QPath) bool {
	res, err := m.Locate(ctx, c.Window, 0, q)
	return err == nil && res.Hashcode == c.Hashcode
}

// idChain walks from c towards the root prepending a locator for every
// ancestor with an Id, until the chain is unique. A locator more than one
// level below the previous one gets MaxDepth.
func (t *Tree) idChain(ctx context.Context, m *qpath.Matcher, c *Control) *qpath.QPath {
	id := c.ID()
	if id == "" {
		return nil
	}
	chain := []qpath.Locator{qpath.NewLocator(eq("Id", id))}
	depth := 1
	for p := c.Parent; p != nil; p = p.Parent {
		pid := p.ID()
		if pid == "" {
			depth++
			continue
		}
		if depth > 1 {
			chain[0] = chain[0].With(qpath.KeyMaxDepth, qpath.IntValue(int64(depth)))
		}
		chain = append([]qpath.Locator{qpath.NewLocator(eq("Id", pid))}, chain...)
		q := qpath.New(pathSep, chain...)
		if t.selects(ctx, m, c, q) {
			return q
		}
		depth = 1
	}
	return nil
}
