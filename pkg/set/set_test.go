package set

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/segdag/pkg/vertex"
)

// fakeMap names id i "v<i>".
type fakeMap struct {
	id    string
	calls int
}

func (m *fakeMap) VertexID(ctx context.Context, name vertex.Name) (vertex.ID, error) {
	id, ok, err := m.VertexIDOptional(ctx, name)
	if err == nil && !ok {
		err = fmt.Errorf("unknown %s", name)
	}
	return id, err
}

func (m *fakeMap) VertexIDOptional(_ context.Context, name vertex.Name) (vertex.ID, bool, error) {
	var id uint64
	if _, err := fmt.Sscanf(string(name), "v%d", &id); err != nil {
		return 0, false, nil
	}
	return vertex.ID(id), true, nil
}

func (m *fakeMap) VertexName(_ context.Context, id vertex.ID) (vertex.Name, error) {
	return vertex.Name(fmt.Sprintf("v%d", uint64(id))), nil
}

func (m *fakeMap) VertexNames(ctx context.Context, ids []vertex.ID) ([]vertex.Name, error) {
	m.calls++
	out := make([]vertex.Name, len(ids))
	for i, id := range ids {
		out[i], _ = m.VertexName(ctx, id)
	}
	return out, nil
}

func (m *fakeMap) MapID() string { return m.id }

func names(t *testing.T, s Set) []string {
	t.Helper()
	got, err := Collect(context.Background(), s)
	require.NoError(t, err)
	out := make([]string, len(got))
	for i, n := range got {
		out[i] = string(n)
	}
	return out
}

func revNames(t *testing.T, s Set) []string {
	t.Helper()
	var out []string
	for n, err := range s.IterRev(context.Background()) {
		require.NoError(t, err)
		out = append(out, string(n))
	}
	return out
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := FromNames(vertex.Names("a", "b", "a", "c")...)

	assert.Equal(t, []string{"a", "b", "c"}, names(t, s))
	assert.Equal(t, []string{"c", "b", "a"}, revNames(t, s))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, known, err := s.ContainsFast(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, known)

	first, ok, err := First(ctx, s)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vertex.Name("a"), first)
	last, _, _ := Last(ctx, s)
	assert.Equal(t, vertex.Name("c"), last)

	assert.True(t, Empty().Hints().Has(FlagEmpty))
	assert.Equal(t, "<static [a, b, c]>", s.String())
}

func TestLazyRunsIteratorOnce(t *testing.T) {
	ctx := context.Background()
	runs := 0
	seq := func(yield func(vertex.Name, error) bool) {
		runs++
		for _, n := range vertex.Names("x", "y", "z") {
			if !yield(n, nil) {
				return
			}
		}
	}
	l := FromIter("xyz", seq, Hints{})
	defer l.Close()

	lo, hi := l.SizeHint()
	assert.Equal(t, 0, lo)
	assert.Equal(t, -1, hi)

	_, known, _ := l.ContainsFast(ctx, "z")
	assert.False(t, known)

	first, _, err := First(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, vertex.Name("x"), first)

	ok, err := l.Contains(ctx, "z")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"x", "y", "z"}, names(t, l))
	assert.Equal(t, []string{"z", "y", "x"}, revNames(t, l))
	assert.Equal(t, 1, runs)

	lo, hi = l.SizeHint()
	assert.Equal(t, 3, lo)
	assert.Equal(t, 3, hi)

	ok, known, _ = l.ContainsFast(ctx, "w")
	assert.False(t, ok)
	assert.True(t, known)
}

func TestLazyError(t *testing.T) {
	boom := fmt.Errorf("boom")
	var seq iter.Seq2[vertex.Name, error] = func(yield func(vertex.Name, error) bool) {
		if !yield("a", nil) {
			return
		}
		yield("", boom)
	}
	l := FromIter("err", seq, Hints{})
	_, err := Collect(context.Background(), l)
	assert.ErrorIs(t, err, boom)
	_, err = l.Count(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLazyClose(t *testing.T) {
	seq := func(yield func(vertex.Name, error) bool) {
		for i := 0; ; i++ {
			if !yield(vertex.Name(fmt.Sprint(i)), nil) {
				return
			}
		}
	}
	l := FromIter("infinite", seq, Hints{})
	_, _, err := First(context.Background(), l)
	require.NoError(t, err)
	l.Close()
	_, err = l.Count(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetaMemoizes(t *testing.T) {
	ctx := context.Background()
	evals := 0
	m := FromEvaluate("ab", func(context.Context) (Set, error) {
		evals++
		return FromNames("a", "b"), nil
	}, Hints{}, WithContains(func(_ context.Context, n vertex.Name) (bool, error) {
		return n == "a" || n == "b", nil
	}))

	ok, known, err := m.ContainsFast(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, known)
	assert.Equal(t, 0, evals)

	_, hi := m.SizeHint()
	assert.Equal(t, -1, hi)

	assert.Equal(t, []string{"a", "b"}, names(t, m))
	assert.Equal(t, []string{"b", "a"}, revNames(t, m))
	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, evals)
}

func TestMetaRetriesFailedEvaluation(t *testing.T) {
	fail := true
	m := FromEvaluate("flaky", func(context.Context) (Set, error) {
		if fail {
			return nil, fmt.Errorf("transient")
		}
		return FromNames("a"), nil
	}, Hints{})
	_, err := m.Count(context.Background())
	require.Error(t, err)
	fail = false
	n, err := m.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIDStatic(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMap{id: "m1"}
	s := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 1, High: 3}, vertex.Span{Low: 10, High: 10}), fm, 0)

	assert.Equal(t, []string{"v1", "v2", "v3", "v10"}, names(t, s))
	assert.Equal(t, []string{"v10", "v3", "v2", "v1"}, revNames(t, s))

	h := s.Hints()
	assert.True(t, h.Has(FlagIDAsc))
	lo, _ := h.MinID()
	hi, _ := h.MaxID()
	assert.Equal(t, vertex.ID(1), lo)
	assert.Equal(t, vertex.ID(10), hi)
	assert.Equal(t, "m1", h.MapID())

	ok, err := s.Contains(ctx, "v2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Contains(ctx, "v5")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Contains(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := s.Count(ctx)
	assert.Equal(t, 4, n)
}

func TestIDStaticBatchesNameLookups(t *testing.T) {
	fm := &fakeMap{id: "m1"}
	s := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 0, High: nameBatch*2 + 9}), fm, 0)
	got := names(t, s)
	assert.Len(t, got, nameBatch*2+10)
	assert.Equal(t, 3, fm.calls)
}

func TestSpanFastPath(t *testing.T) {
	fm := &fakeMap{id: "m1"}
	a := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 0, High: 5}), fm, FlagAncestors)
	b := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 3, High: 8}), fm, FlagAncestors)

	u, ok := Union(a, b).(*IDStatic)
	require.True(t, ok)
	assert.Equal(t, "[0..=8]", u.IDs().String())
	assert.True(t, u.Hints().Has(FlagAncestors))

	i, ok := Intersection(a, b).(*IDStatic)
	require.True(t, ok)
	assert.Equal(t, "[3..=5]", i.IDs().String())

	d, ok := Difference(a, b).(*IDStatic)
	require.True(t, ok)
	assert.Equal(t, "[0..=2]", d.IDs().String())
	assert.False(t, d.Hints().Has(FlagAncestors))

	other := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 3, High: 8}), &fakeMap{id: "m2"}, 0)
	_, ok = Union(a, other).(*IDStatic)
	assert.False(t, ok)
}

func TestGenericCombinators(t *testing.T) {
	ctx := context.Background()
	a := FromNames("a", "b", "c")
	b := FromNames("c", "d")

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(t, Union(a, b)))
	assert.Equal(t, []string{"d", "c", "b", "a"}, revNames(t, Union(a, b)))
	assert.Equal(t, []string{"c"}, names(t, Intersection(a, b)))
	assert.Equal(t, []string{"a", "b"}, names(t, Difference(a, b)))

	n, err := Union(a, b).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ok, err := Difference(a, b).Contains(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Same(t, a, Union(a, Empty()))
	assert.Same(t, a, Difference(a, Empty()))
}

func TestMixedCombinators(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMap{id: "m1"}
	ids := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 0, High: 4}), fm, 0)
	st := FromNames("v2", "v7")

	assert.Equal(t, []string{"v0", "v1", "v2", "v3", "v4", "v7"}, names(t, Union(ids, st)))
	assert.Equal(t, []string{"v2"}, names(t, Intersection(st, ids)))
	assert.Equal(t, []string{"v0", "v1", "v3", "v4"}, names(t, Difference(ids, st)))

	got, err := ToIDSet(ctx, Union(ids, st), fm)
	require.NoError(t, err)
	assert.Equal(t, "[0..=4 7]", got.String())

	_, err = ToIDSet(ctx, FromNames("bogus"), fm)
	assert.Error(t, err)
}

func TestHintsPropagation(t *testing.T) {
	a := NewHints("m").WithMinID(2).WithMaxID(9).WithFlags(FlagIDAsc | FlagAncestors)
	b := NewHints("m").WithMinID(5).WithMaxID(20).WithFlags(FlagAncestors)

	u := unionHints(a, b)
	lo, _ := u.MinID()
	hi, _ := u.MaxID()
	assert.Equal(t, vertex.ID(2), lo)
	assert.Equal(t, vertex.ID(20), hi)
	assert.True(t, u.Has(FlagAncestors))
	assert.False(t, u.Has(FlagIDAsc))

	i := intersectionHints(a, b)
	lo, _ = i.MinID()
	hi, _ = i.MaxID()
	assert.Equal(t, vertex.ID(5), lo)
	assert.Equal(t, vertex.ID(9), hi)
	assert.True(t, i.Has(FlagIDAsc))

	d := differenceHints(a, b)
	assert.False(t, d.Has(FlagAncestors))
	assert.True(t, d.Has(FlagIDAsc))

	foreign := unionHints(a, NewHints("other").WithMinID(0))
	_, ok := foreign.MinID()
	assert.False(t, ok)
}

func TestIsEmpty(t *testing.T) {
	ctx := context.Background()
	empty, err := IsEmpty(ctx, Empty())
	require.NoError(t, err)
	assert.True(t, empty)

	l := FromIter("one", func(yield func(vertex.Name, error) bool) { yield("a", nil) }, Hints{})
	empty, err = IsEmpty(ctx, l)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestStaleMapIDSkipsFastPaths(t *testing.T) {
	ctx := context.Background()
	fm := &fakeMap{id: "m1"}
	a := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 0, High: 2}), fm, 0)
	fm.id = "m2"
	b := FromIDSet(vertex.NewIDSet(vertex.Span{Low: 2, High: 4}), fm, 0)

	_, ok := Union(a, b).(*IDStatic)
	assert.False(t, ok, "sets from different map ids must not combine by id")

	calls := fm.calls
	got, err := ToIDSet(ctx, a, fm)
	require.NoError(t, err)
	assert.Equal(t, "[0..=2]", got.String())
	assert.Greater(t, fm.calls, calls, "a stale set is translated by name")

	calls = fm.calls
	_, err = ToIDSet(ctx, b, fm)
	require.NoError(t, err)
	assert.Equal(t, calls, fm.calls, "a current set is used as is")
}
