package set

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// EvalFunc produces the concrete set behind a Meta.
type EvalFunc func(ctx context.Context) (Set, error)

// ContainsFunc answers membership without evaluation.
type ContainsFunc func(ctx context.Context, name vertex.Name) (bool, error)

// Meta defers to an evaluation function and memoizes its result. A failed
// evaluation is not cached.
type Meta struct {
	desc     string
	hints    Hints
	eval     EvalFunc
	contains ContainsFunc

	mu     sync.Mutex
	result Set
}

var _ Set = (*Meta)(nil)

// MetaOption configures a Meta.
type MetaOption func(*Meta)

// WithContains installs a membership check that bypasses evaluation.
func WithContains(fn ContainsFunc) MetaOption {
	return func(m *Meta) { m.contains = fn }
}

// FromEvaluate builds a Meta set.
func FromEvaluate(desc string, eval EvalFunc, hints Hints, opts ...MetaOption) *Meta {
	m := &Meta{desc: desc, eval: eval, hints: hints}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate runs the evaluation function once.
func (m *Meta) Evaluate(ctx context.Context) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result != nil {
		return m.result, nil
	}
	s, err := m.eval(ctx)
	if err != nil {
		return nil, err
	}
	m.result = s
	return s, nil
}

func (m *Meta) evaluated() Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

func (m *Meta) Iter(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		s, err := m.Evaluate(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for n, err := range s.Iter(ctx) {
			if !yield(n, err) || err != nil {
				return
			}
		}
	}
}

func (m *Meta) IterRev(ctx context.Context) iter.Seq2[vertex.Name, error] {
	return func(yield func(vertex.Name, error) bool) {
		s, err := m.Evaluate(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for n, err := range s.IterRev(ctx) {
			if !yield(n, err) || err != nil {
				return
			}
		}
	}
}

func (m *Meta) Contains(ctx context.Context, name vertex.Name) (bool, error) {
	if s := m.evaluated(); s != nil {
		return s.Contains(ctx, name)
	}
	if m.contains != nil {
		return m.contains(ctx, name)
	}
	s, err := m.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return s.Contains(ctx, name)
}

func (m *Meta) ContainsFast(ctx context.Context, name vertex.Name) (bool, bool, error) {
	if s := m.evaluated(); s != nil {
		return s.ContainsFast(ctx, name)
	}
	if m.contains != nil {
		ok, err := m.contains(ctx, name)
		return ok, err == nil, err
	}
	return false, false, nil
}

func (m *Meta) Count(ctx context.Context) (int, error) {
	s, err := m.Evaluate(ctx)
	if err != nil {
		return 0, err
	}
	return s.Count(ctx)
}

func (m *Meta) SizeHint() (int, int) {
	if s := m.evaluated(); s != nil {
		return s.SizeHint()
	}
	if m.hints.Has(FlagEmpty) {
		return 0, 0
	}
	return 0, -1
}

func (m *Meta) Hints() Hints { return m.hints }

func (m *Meta) String() string {
	return fmt.Sprintf("<meta %s>", m.desc)
}
