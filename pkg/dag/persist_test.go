package dag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/segdag/pkg/vertex"
)

func openStore(t *testing.T, dir string) *Dag {
	t.Helper()
	d, err := Open(context.Background(), dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

// answers collects query results that must survive a reopen.
func answers(t *testing.T, d *Dag, vs []string) map[string][]string {
	t.Helper()
	ctx := context.Background()
	out := make(map[string][]string)
	for _, v := range vs {
		anc, err := d.Ancestors(ctx, ns(v))
		require.NoError(t, err)
		out["anc "+v] = names(t, anc)
		desc, err := d.Descendants(ctx, ns(v))
		require.NoError(t, err)
		out["desc "+v] = names(t, desc)
		for _, w := range vs {
			ok, err := d.IsAncestor(ctx, vertex.Name(v), vertex.Name(w))
			require.NoError(t, err)
			if ok {
				out["isanc "+v] = append(out["isanc "+v], w)
			}
		}
	}
	all, err := d.All(ctx)
	require.NoError(t, err)
	heads, err := d.Heads(ctx, all)
	require.NoError(t, err)
	out["heads"] = names(t, heads)
	return out
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")
	d := openStore(t, dir)

	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "C": {"A"}, "D": {"B", "C"}, "E": {"D"}, "F": {"C"}}
	require.NoError(t, d.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads("E").Concat(vertex.NonMasterHeads("F"))))
	assert.False(t, d.IsDirty())
	vs := []string{"A", "B", "C", "D", "E", "F"}
	want := answers(t, d, vs)

	again, err := d.Reopen(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, answers(t, again, vs))
	for _, v := range vs {
		assert.Equal(t, id(t, d, v), id(t, again, v), v)
	}
	assert.Empty(t, again.CheckSegments())
	assert.Equal(t, d.MapID(), again.MapID())
}

func TestPersistIncrementalAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := openStore(t, dir)

	parents := vertex.ParentMap{}
	prev := []vertex.Name(nil)
	for i := range 40 {
		n := vertex.Name(rune('a'+i%26)) + vertex.Name(rune('0'+i/26))
		parents[n] = prev
		prev = []vertex.Name{n}
		require.NoError(t, d.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads(n)))
	}

	again := openStore(t, dir)
	all, err := again.All(ctx)
	require.NoError(t, err)
	count, err := all.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, count)
	assert.Empty(t, again.CheckSegments())
	assert.Len(t, again.DebugSegments(0, vertex.Master), 1, "a linear chain stays one flat segment")
}

func TestPersistVirtualNotWritten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := openStore(t, dir)
	require.NoError(t, d.AddHeadsAndFlush(ctx, chain, vertex.MasterHeads("C")))
	require.NoError(t, d.SetManagedVirtualGroup(ctx, []VirtualVertex{{Name: "wdir", Parents: vertex.Names("C")}}))
	require.NoError(t, d.Flush(ctx, nil))

	again := openStore(t, dir)
	assert.False(t, again.ContainsNameLocally("wdir"))
	assert.True(t, again.ContainsNameLocally("C"))
}

func TestFlushReloadsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := openStore(t, dir)
	require.NoError(t, first.AddHeadsAndFlush(ctx, chain, vertex.MasterHeads("C")))

	second := openStore(t, dir)
	parents := vertex.ParentMap{"X": {"C"}, "Y": {"C"}}
	require.NoError(t, second.AddHeads(ctx, parents, vertex.NonMasterHeads("Y")))

	// The first handle commits while the second still holds pending heads.
	require.NoError(t, first.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads("X")))
	epochBefore := second.MapID()
	require.NoError(t, second.Flush(ctx, nil))
	assert.NotEqual(t, epochBefore, second.MapID())
	assert.True(t, second.ContainsNameLocally("X"))

	fresh := openStore(t, dir)
	heads, err := fresh.Heads(ctx, must(fresh.All(ctx)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X", "Y"}, names(t, heads))
	assert.Empty(t, fresh.CheckSegments())
}

func TestFailedReassignKeepsStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := openStore(t, dir)
	parents := vertex.ParentMap{"A": nil, "X": {"A"}}
	require.NoError(t, d.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads("A").Concat(vertex.NonMasterHeads("X"))))

	require.Error(t, d.AddHeads(ctx, downstreamParents(), vertex.MasterHeads("M")))
	require.NoError(t, d.Flush(ctx, nil))

	again := openStore(t, dir)
	assert.True(t, again.ContainsNameLocally("X"), "a failed reassignment must not drop flushed vertices")
	assert.Equal(t, vertex.NonMaster, id(t, again, "X").Group())
	assert.Empty(t, again.CheckSegments())

	// With Y loadable the same head goes through.
	fixed := vertex.ParentMap{"M": {"Y", "X"}, "Y": {"A"}}
	require.NoError(t, d.AddHeadsAndFlush(ctx, fixed, vertex.MasterHeads("M")))
	assert.Equal(t, vertex.Master, id(t, d, "X").Group())
}

func TestStripAfterConcurrentReassign(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := openStore(t, dir)
	parents := vertex.ParentMap{"A": nil, "X": {"A"}, "Y": {"A"}}
	require.NoError(t, first.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads("A").Concat(vertex.NonMasterHeads("X", "Y"))))
	second := openStore(t, dir)

	// The first handle moves X to the master group, so the second
	// handle's non-master ids are stale.
	require.NoError(t, first.AddHeadsAndFlush(ctx, vertex.ParentMap{"M": {"X"}}, vertex.MasterHeads("M")))
	require.NoError(t, second.Strip(ctx, ns("X")))

	for _, d := range []*Dag{second, openStore(t, dir)} {
		assert.False(t, d.ContainsNameLocally("X"))
		assert.False(t, d.ContainsNameLocally("M"))
		assert.True(t, d.ContainsNameLocally("Y"))
		assert.True(t, d.ContainsNameLocally("A"))
		assert.Empty(t, d.CheckSegments())
	}
}

func TestStripPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := openStore(t, dir)
	require.NoError(t, d.AddHeadsAndFlush(ctx, chain, vertex.MasterHeads("C")))
	require.NoError(t, d.Strip(ctx, ns("B")))

	again := openStore(t, dir)
	assert.True(t, again.ContainsNameLocally("A"))
	assert.False(t, again.ContainsNameLocally("B"))
	assert.False(t, again.ContainsNameLocally("C"))

	// Stripped names can be added again.
	require.NoError(t, again.AddHeadsAndFlush(ctx, chain, vertex.MasterHeads("C")))
	assert.Equal(t, vertex.ID(2), id(t, again, "C"))
}

func TestReassignPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := openStore(t, dir)
	require.NoError(t, d.AddHeadsAndFlush(ctx, chain, vertex.NonMasterHeads("C")))
	assert.Equal(t, vertex.NonMaster, id(t, d, "C").Group())

	require.NoError(t, d.Flush(ctx, vertex.Names("C")))
	again := openStore(t, dir)
	assert.Equal(t, vertex.Master, id(t, again, "C").Group())
	assert.Empty(t, again.CheckSegments())
}

func TestOpenRejectsBadPath(t *testing.T) {
	_, err := Open(context.Background(), "", Options{})
	assert.Error(t, err)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
