package idmap

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/vertex"
)

func assign(t *testing.T, m *IdMap, parents vertex.ParentMap, head string, group vertex.Group, covered *vertex.IDSet) iddag.PreparedFlatSegments {
	t.Helper()
	out, err := m.AssignHead(context.Background(), vertex.Name(head), parents, group, covered, vertex.IDSet{})
	require.NoError(t, err)
	return out
}

func TestAssignLinearChain(t *testing.T) {
	m := New()
	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "C": {"B"}}
	var covered vertex.IDSet
	out := assign(t, m, parents, "C", vertex.Master, &covered)

	for i, name := range []string{"A", "B", "C"} {
		id, err := m.VertexID(vertex.Name(name))
		require.NoError(t, err)
		assert.Equal(t, vertex.ID(i), id, name)
	}
	require.Len(t, out.Segments, 1)
	assert.Equal(t, iddag.FlatSegment{Low: 0, High: 2, Parents: nil}, out.Segments[0])
	assert.True(t, covered.Equal(vertex.NewIDSet(vertex.Span{Low: 0, High: 2})))

	again := assign(t, m, parents, "C", vertex.Master, &covered)
	assert.Empty(t, again.Segments, "assigning an existing head is a no-op")
}

func TestAssignFirstParentLast(t *testing.T) {
	// D merges B (first parent) and C; both fork from A.
	m := New()
	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "C": {"A"}, "D": {"B", "C"}}
	var covered vertex.IDSet
	out := assign(t, m, parents, "D", vertex.Master, &covered)

	idOf := func(n string) vertex.ID {
		id, err := m.VertexID(vertex.Name(n))
		require.NoError(t, err)
		return id
	}
	assert.Equal(t, idOf("B")+1, idOf("D"), "first parent directly precedes the merge")
	assert.Less(t, idOf("A"), idOf("C"))
	for _, s := range out.Segments {
		for _, p := range s.Parents {
			assert.Less(t, p, s.Low)
		}
	}
}

func TestAssignNonMasterOnTopOfMaster(t *testing.T) {
	m := New()
	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "X": {"B"}}
	var covered vertex.IDSet
	assign(t, m, parents, "B", vertex.Master, &covered)
	out := assign(t, m, parents, "X", vertex.NonMaster, &covered)

	x, err := m.VertexID("X")
	require.NoError(t, err)
	assert.Equal(t, vertex.NonMaster.MinID(), x)
	assert.Equal(t, []vertex.ID{1}, out.Segments[0].Parents)

	// X is now an ancestor of a master head.
	parents["M"] = []vertex.Name{"X"}
	_, err = m.AssignHead(context.Background(), "M", parents, vertex.Master, &covered, vertex.IDSet{})
	assert.True(t, errors.Is(err, ErrNeedsReassign), "err = %v", err)
	assert.False(t, m.ContainsName("M"), "failed assignment must roll back")
}

func TestAssignDetectsCycles(t *testing.T) {
	m := New()
	parents := vertex.ParentMap{"A": {"C"}, "B": {"A"}, "C": {"B"}}
	var covered vertex.IDSet
	_, err := m.AssignHead(context.Background(), "C", parents, vertex.Master, &covered, vertex.IDSet{})
	assert.True(t, derrors.Is(err, derrors.ErrCodeProgramming), "err = %v", err)
	assert.Equal(t, 0, m.Len())
	assert.True(t, covered.IsEmpty())
}

func TestAssignPropagatesParentErrors(t *testing.T) {
	m := New()
	var covered vertex.IDSet
	_, err := m.AssignHead(context.Background(), "B", vertex.ParentMap{"B": {"A"}}, vertex.Master, &covered, vertex.IDSet{})
	assert.True(t, derrors.Is(err, derrors.ErrCodeRemote), "err = %v", err)
	assert.True(t, errors.Is(err, vertex.ErrUnknownVertex))
	assert.False(t, m.ContainsName("B"))
}

func TestAssignHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New()
	var covered vertex.IDSet
	_, err := m.AssignHead(ctx, "A", vertex.ParentMap{"A": nil}, vertex.Master, &covered, vertex.IDSet{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssignLongChainIsIterative(t *testing.T) {
	const n = 200000
	parents := vertex.ParentsFunc(func(_ context.Context, name vertex.Name) ([]vertex.Name, error) {
		i := decodeIndex(name)
		if i == 0 {
			return nil, nil
		}
		return []vertex.Name{encodeIndex(i - 1)}, nil
	})
	m := New()
	var covered vertex.IDSet
	out, err := m.AssignHead(context.Background(), encodeIndex(n-1), parents, vertex.Master, &covered, vertex.IDSet{})
	require.NoError(t, err)
	require.Len(t, out.Segments, 1)
	assert.Equal(t, vertex.ID(n-1), out.Segments[0].High)
}

func TestReservedIDs(t *testing.T) {
	m := New()
	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "R": nil}
	var covered vertex.IDSet
	assign(t, m, parents, "A", vertex.Master, &covered)
	reserved := Reserve(0, 3, covered)
	assert.True(t, reserved.Equal(vertex.NewIDSet(vertex.Span{Low: 1, High: 3})))

	_, err := m.AssignHead(context.Background(), "R", parents, vertex.Master, &covered, reserved)
	require.NoError(t, err)
	r, _ := m.VertexID("R")
	assert.Equal(t, vertex.ID(4), r, "unrelated roots skip reserved ids")

	_, err = m.AssignHead(context.Background(), "B", parents, vertex.Master, &covered, reserved)
	require.NoError(t, err)
	b, _ := m.VertexID("B")
	assert.Equal(t, vertex.ID(1), b, "first-parent children continue into reserved ids")
}

func TestPendingAndPersisted(t *testing.T) {
	m := New()
	require.NoError(t, m.Load([]Entry{{ID: 0, Name: "A"}}))
	require.NoError(t, m.Insert(1, "B"))
	require.NoError(t, m.Insert(vertex.Virtual.MinID(), "wdir"))

	assert.Equal(t, []Entry{{ID: 1, Name: "B"}}, m.Pending())
	m.MarkPersisted()
	assert.False(t, m.HasPending())
	assert.True(t, m.ContainsName("wdir"), "virtual entries survive persisting")
	assert.Equal(t, []Entry{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}}, m.Entries())

	err := m.Insert(2, "A")
	assert.True(t, derrors.Is(err, derrors.ErrCodeConflict), "err = %v", err)
	assert.NoError(t, m.Insert(0, "A"), "identical entries are accepted")

	_, err = m.VertexName(9)
	assert.True(t, derrors.IsNotFound(err))
}

func TestPersistIDs(t *testing.T) {
	m := New()
	require.NoError(t, m.Insert(1, "B"))
	require.NoError(t, m.Insert(5, "F"))
	require.NoError(t, m.Insert(vertex.Virtual.MinID(), "wdir"))

	m.PersistIDs(vertex.IDSetOf(1, vertex.Virtual.MinID()))
	assert.Equal(t, []Entry{{ID: 5, Name: "F"}}, m.Pending())
	assert.True(t, m.ContainsName("B"))
	assert.True(t, m.ContainsName("wdir"))
	m.MarkPersisted()
	assert.False(t, m.HasPending())
}

func TestClone(t *testing.T) {
	m := New()
	require.NoError(t, m.Load([]Entry{{ID: 0, Name: "A"}}))
	require.NoError(t, m.Insert(1, "B"))

	c := m.Clone()
	require.NoError(t, m.Insert(2, "C"))
	m.RemoveIDs(vertex.IDSetOf(0))
	m.MarkPersisted()

	assert.True(t, c.ContainsName("A"))
	assert.False(t, c.ContainsName("C"))
	assert.Equal(t, []Entry{{ID: 1, Name: "B"}}, c.Pending())
	assert.Equal(t, []Entry{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}}, c.Entries())
}

func TestRemoveIDs(t *testing.T) {
	m := New()
	require.NoError(t, m.Load([]Entry{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}}))
	require.NoError(t, m.Insert(2, "C"))
	assert.Equal(t, 2, m.RemoveIDs(vertex.NewIDSet(vertex.Span{Low: 1, High: 2})))
	assert.True(t, m.ContainsName("A"))
	assert.False(t, m.ContainsName("B"))
	assert.False(t, m.ContainsID(2))
	assert.Empty(t, m.Pending())
}

func TestNamesByHexPrefix(t *testing.T) {
	m := New()
	for i, h := range []string{"ab01", "ab02", "ac00", "0f"} {
		n, err := vertex.NameFromHex(h)
		require.NoError(t, err)
		require.NoError(t, m.Insert(vertex.ID(i), n))
	}
	got := m.NamesByHexPrefix("AB", 0)
	hex := make([]string, len(got))
	for i, n := range got {
		hex[i] = n.Hex()
	}
	assert.Equal(t, []string{"ab01", "ab02"}, hex)
	assert.Len(t, m.NamesByHexPrefix("a", 1), 1)
	assert.Empty(t, m.NamesByHexPrefix("ff", 0))
}

func TestEntryCodec(t *testing.T) {
	e := Entry{ID: vertex.NonMaster.MinID() + 7, Name: vertex.NameFromBytes([]byte{0, 1, 2})}
	got, err := DecodeEntry(EncodeEntry(e))
	require.NoError(t, err)
	assert.Equal(t, e, got)

	for _, bad := range [][]byte{{}, {0x80}, {0x05}} {
		_, err := DecodeEntry(bad)
		assert.True(t, derrors.Is(err, derrors.ErrCodeCorruption), "DecodeEntry(%x)", bad)
	}
}

func encodeIndex(i int) vertex.Name {
	return vertex.Name([]byte{'v', byte(i >> 16), byte(i >> 8), byte(i)})
}

func decodeIndex(n vertex.Name) int {
	b := []byte(n)
	return int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}

func TestEncodeIndex(t *testing.T) {
	for _, i := range []int{0, 1, 255, 70000} {
		if got := decodeIndex(encodeIndex(i)); got != i {
			t.Errorf("decodeIndex(encodeIndex(%d)) = %d", i, got)
		}
	}
	if !slices.Equal([]byte(encodeIndex(1)), []byte{'v', 0, 0, 1}) {
		t.Error("unexpected encoding")
	}
}
