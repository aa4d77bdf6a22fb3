package render

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

func diamond(t *testing.T) *dag.Dag {
	t.Helper()
	d := dag.NewMem(dag.Options{})
	parents := vertex.ParentMap{"A": nil, "B": {"A"}, "C": {"A"}, "D": {"B", "C"}, "N": {"C"}}
	heads := vertex.MasterHeads("D").Concat(vertex.NonMasterHeads("N"))
	if err := d.AddHeadsAndFlush(context.Background(), parents, heads); err != nil {
		t.Fatal(err)
	}
	return d
}

func all(t *testing.T, d *dag.Dag) set.Set {
	t.Helper()
	s, err := d.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestToDOT_Basic(t *testing.T) {
	d := diamond(t)
	dot, err := ToDOT(context.Background(), d, all(t, d), Options{})
	if err != nil {
		t.Fatalf("ToDOT() error: %v", err)
	}

	if !strings.Contains(dot, "digraph G") {
		t.Error("ToDOT() output missing digraph declaration")
	}
	for _, want := range []string{`"A" [`, `"D" [`, `"D" -> "B";`, `"D" -> "C" [color=grey40];`, `"B" -> "A";`} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() output missing %s", want)
		}
	}
	if !strings.Contains(dot, `"N" [label="N", fillcolor=lightblue]`) {
		t.Error("ToDOT() non-master vertex should be light blue")
	}
	if strings.Contains(dot, "cluster_") {
		t.Error("ToDOT() without Segments should not draw clusters")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	d := diamond(t)
	dot, err := ToDOT(context.Background(), d, all(t, d), Options{Detailed: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `label="N\nN0"`) {
		t.Errorf("ToDOT() detailed output missing id label:\n%s", dot)
	}
}

func TestToDOT_Segments(t *testing.T) {
	d := diamond(t)
	dot, err := ToDOT(context.Background(), d, all(t, d), Options{Segments: true})
	if err != nil {
		t.Fatal(err)
	}
	// A and C share the first flat segment.
	if !strings.Contains(dot, `subgraph "cluster_0"`) || !strings.Contains(dot, `label="0..=1"`) {
		t.Errorf("ToDOT() missing flat segment cluster:\n%s", dot)
	}
	if !strings.Contains(dot, `subgraph "cluster_N0"`) {
		t.Errorf("ToDOT() missing non-master cluster:\n%s", dot)
	}
}

func TestToDOT_Subset(t *testing.T) {
	ctx := context.Background()
	d := diamond(t)
	s, err := d.Descendants(ctx, set.FromNames("B"))
	if err != nil {
		t.Fatal(err)
	}
	dot, err := ToDOT(ctx, d, s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `"A" [label="A", style=dashed, fillcolor=none];`) {
		t.Errorf("ToDOT() should stub parents outside the set:\n%s", dot)
	}
	if !strings.Contains(dot, `"D" -> "C" [style=dashed];`) {
		t.Errorf("ToDOT() should dash edges leaving the set:\n%s", dot)
	}
}

func TestToDOT_Virtual(t *testing.T) {
	ctx := context.Background()
	d := diamond(t)
	if err := d.SetManagedVirtualGroup(ctx, []dag.VirtualVertex{{Name: "wdir", Parents: []vertex.Name{"D"}}}); err != nil {
		t.Fatal(err)
	}
	dot, err := ToDOT(ctx, d, all(t, d), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `"wdir" [label="wdir", fillcolor=lightgrey, style="rounded,filled,dashed"]`) {
		t.Errorf("ToDOT() virtual vertex should be dashed grey:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want string
	}{
		{
			name: "with viewBox",
			svg:  `<svg viewBox="10 20 800 600" xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800.00 600.00" width="800" height="600">content</svg>`,
		},
		{
			name: "no viewBox",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
			want: `<svg xmlns="http://www.w3.org/2000/svg">content</svg>`,
		},
		{
			name: "zero dimensions",
			svg:  `<svg viewBox="0 0 0 0">content</svg>`,
			want: `<svg viewBox="0 0 0 0">content</svg>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeViewBox([]byte(tt.svg))
			if string(got) != tt.want {
				t.Errorf("normalizeViewBox() = %q, want %q", string(got), tt.want)
			}
		})
	}
}

func TestRenderSVG(t *testing.T) {
	d := diamond(t)
	dot, err := ToDOT(context.Background(), d, all(t, d), Options{Segments: true})
	if err != nil {
		t.Fatal(err)
	}
	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("RenderSVG() output missing <svg> tag")
	}
}

func TestRenderSVG_InvalidDOT(t *testing.T) {
	if _, err := RenderSVG(context.Background(), `not valid DOT {{{`); err == nil {
		t.Error("RenderSVG() should return error for invalid DOT")
	}
}
