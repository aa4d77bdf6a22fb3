package io

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/segdag/pkg/dag"
	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

const diamondJSON = `{
  "vertices": [
    {"name": "A"},
    {"name": "B", "parents": ["A"]},
    {"name": "C", "parents": ["A"]},
    {"name": "D", "parents": ["B", "C"]},
    {"name": "E", "parents": ["C"]}
  ],
  "master": ["D"]
}`

func collect(t *testing.T, s set.Set, err error) []string {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	names, err := set.Collect(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	slices.Sort(out)
	return out
}

func TestReadJSON(t *testing.T) {
	g, err := ReadJSON(strings.NewReader(diamondJSON))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if len(g.Order) != 5 {
		t.Errorf("len(Order) = %d, want 5", len(g.Order))
	}
	heads := g.Heads()
	want := vertex.HeadList{
		{Name: "D", Group: vertex.Master},
		{Name: "E", Group: vertex.NonMaster},
	}
	if !slices.Equal(heads, want) {
		t.Errorf("Heads() = %v, want %v", heads, want)
	}
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `{"vertices": [`},
		{"duplicate", `{"vertices": [{"name": "A"}, {"name": "A"}]}`},
		{"empty name", `{"vertices": [{"name": ""}]}`},
		{"unknown master", `{"vertices": [{"name": "A"}], "master": ["B"]}`},
		{"self loop", `{"vertices": [{"name": "A", "parents": ["A"]}]}`},
		{"cycle", `{"vertices": [{"name": "A", "parents": ["B"]}, {"name": "B", "parents": ["A"]}]}`},
		{"bad hex", `{"hex": true, "vertices": [{"name": "zz"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.input))
			if !derrors.Is(err, derrors.ErrCodeInvalidInput) {
				t.Errorf("ReadJSON() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestAddTo(t *testing.T) {
	ctx := context.Background()
	g, err := ReadJSON(strings.NewReader(diamondJSON))
	if err != nil {
		t.Fatal(err)
	}
	d := dag.NewMem(dag.Options{})
	if err := g.AddTo(ctx, d); err != nil {
		t.Fatalf("AddTo() error = %v", err)
	}

	master, err := d.MasterGroup(ctx)
	if got := collect(t, master, err); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("master group = %v", got)
	}
	nonMaster, err := d.NonMasterGroup(ctx)
	if got := collect(t, nonMaster, err); !slices.Equal(got, []string{"E"}) {
		t.Errorf("non-master group = %v", got)
	}
	if d.IsDirty() {
		t.Error("AddTo() should flush")
	}
}

func TestAddToExternalParents(t *testing.T) {
	ctx := context.Background()
	d := dag.NewMem(dag.Options{})
	base, err := ReadJSON(strings.NewReader(`{"vertices": [{"name": "A"}], "master": ["A"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := base.AddTo(ctx, d); err != nil {
		t.Fatal(err)
	}

	more, err := ReadJSON(strings.NewReader(`{"vertices": [{"name": "B", "parents": ["A"]}], "master": ["B"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := more.AddTo(ctx, d); err != nil {
		t.Fatalf("AddTo() with external parent error = %v", err)
	}
	ok, err := d.IsAncestor(ctx, "A", "B")
	if err != nil || !ok {
		t.Errorf("IsAncestor(A, B) = %v, %v; want true", ok, err)
	}

	orphan, err := ReadJSON(strings.NewReader(`{"vertices": [{"name": "C", "parents": ["X"]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := orphan.AddTo(ctx, d); err == nil {
		t.Error("AddTo() with a parent missing everywhere should fail")
	}
	if d.ContainsNameLocally("C") {
		t.Error("failed AddTo() should not add C")
	}
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	g, err := ReadJSON(strings.NewReader(diamondJSON))
	if err != nil {
		t.Fatal(err)
	}
	src := dag.NewMem(dag.Options{})
	if err := g.AddTo(ctx, src); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	all, err := src.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := ExportJSON(ctx, src, all, path); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	back, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON() error = %v", err)
	}
	if !slices.Equal(back.Master, []vertex.Name{"D"}) {
		t.Errorf("Master = %v, want [D]", back.Master)
	}
	dst := dag.NewMem(dag.Options{})
	if err := back.AddTo(ctx, dst); err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Order {
		want, _ := src.ParentNames(ctx, n)
		got, err := dst.ParentNames(ctx, n)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("parents of %s = %v, want %v", n, got, want)
		}
	}
}

func TestExportHex(t *testing.T) {
	ctx := context.Background()
	root, child := vertex.Name("\x00\x01"), vertex.Name("\xff")
	d := dag.NewMem(dag.Options{})
	parents := vertex.ParentMap{root: nil, child: {root}}
	if err := d.AddHeadsAndFlush(ctx, parents, vertex.MasterHeads(child)); err != nil {
		t.Fatal(err)
	}
	all, err := d.All(ctx)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(ctx, d, all, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"hex": true`) || !strings.Contains(buf.String(), `"0001"`) {
		t.Errorf("WriteJSON() = %s, want hex names", buf.String())
	}

	g, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(g.Order, []vertex.Name{root, child}) {
		t.Errorf("Order = %q, want %q", g.Order, []vertex.Name{root, child})
	}
}
