package dag

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

type graph struct {
	order   []vertex.Name
	parents vertex.ParentMap
}

// genGraph draws a random DAG whose vertex i only has parents below i.
func genGraph(t *rapid.T) graph {
	n := rapid.IntRange(1, 40).Draw(t, "n")
	g := graph{parents: make(vertex.ParentMap, n)}
	for i := range n {
		name := vertex.Name(fmt.Sprintf("v%02d", i))
		var ps []vertex.Name
		if i > 0 && rapid.IntRange(0, 7).Draw(t, "root") != 0 {
			ps = append(ps, g.order[rapid.IntRange(max(0, i-3), i-1).Draw(t, "first")])
			if rapid.IntRange(0, 3).Draw(t, "merge") == 0 {
				if second := g.order[rapid.IntRange(0, i-1).Draw(t, "second")]; second != ps[0] {
					ps = append(ps, second)
				}
			}
		}
		g.parents[name] = ps
		g.order = append(g.order, name)
	}
	return g
}

func (g graph) heads() []vertex.Name {
	hasChild := make(map[vertex.Name]bool)
	for _, ps := range g.parents {
		for _, p := range ps {
			hasChild[p] = true
		}
	}
	var out []vertex.Name
	for _, n := range g.order {
		if !hasChild[n] {
			out = append(out, n)
		}
	}
	return out
}

func (g graph) ancestors(n vertex.Name) []string {
	seen := map[vertex.Name]bool{}
	stack := []vertex.Name{n}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[x] {
			continue
		}
		seen[x] = true
		stack = append(stack, g.parents[x]...)
	}
	out := make([]string, 0, len(seen))
	for x := range seen {
		out = append(out, string(x))
	}
	slices.Sort(out)
	return out
}

func sortedNames(t *rapid.T, ctx context.Context, s set.Set) []string {
	got, err := set.Collect(ctx, s)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make([]string, len(got))
	for i, n := range got {
		out[i] = string(n)
	}
	slices.Sort(out)
	return out
}

// build adds the heads of g, some of them to the master group.
func build(t *rapid.T, g graph) *Dag {
	ctx := context.Background()
	var heads vertex.HeadList
	for i, h := range g.heads() {
		group := vertex.NonMaster
		if i == 0 || rapid.Bool().Draw(t, "master") {
			group = vertex.Master
		}
		heads = append(heads, vertex.HeadOptions{Name: h, Group: group})
	}
	d := NewMem(Options{SegmentSize: rapid.IntRange(2, 4).Draw(t, "segSize"), MaxLevel: 3})
	if err := d.AddHeads(ctx, g.parents, heads); err != nil {
		t.Fatalf("AddHeads: %v", err)
	}
	if err := d.Flush(ctx, nil); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if problems := d.CheckSegments(); len(problems) > 0 {
		t.Fatalf("CheckSegments() = %v", problems)
	}
	return d
}

func TestGraphProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		g := genGraph(t)
		d := build(t, g)

		for _, n := range g.order {
			id, err := d.VertexID(ctx, n)
			if err != nil {
				t.Fatalf("VertexID(%s): %v", n, err)
			}
			back, err := d.VertexName(ctx, id)
			if err != nil || back != n {
				t.Fatalf("VertexName(VertexID(%s)) = %s, %v", n, back, err)
			}
			for _, p := range g.parents[n] {
				pid, _ := d.VertexID(ctx, p)
				if pid >= id {
					t.Fatalf("parent %s id %s is not below %s id %s", p, pid, n, id)
				}
			}
		}

		v := g.order[rapid.IntRange(0, len(g.order)-1).Draw(t, "v")]
		anc, err := d.Ancestors(ctx, ns(string(v)))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := sortedNames(t, ctx, anc), g.ancestors(v); !slices.Equal(got, want) {
			t.Fatalf("Ancestors(%s) = %v, want %v", v, got, want)
		}
		again, err := d.Ancestors(ctx, anc)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := sortedNames(t, ctx, again), g.ancestors(v); !slices.Equal(got, want) {
			t.Fatalf("Ancestors is not idempotent: %v, want %v", got, want)
		}

		a := g.order[rapid.IntRange(0, len(g.order)-1).Draw(t, "a")]
		b := g.order[rapid.IntRange(0, len(g.order)-1).Draw(t, "b")]
		gca, err := d.GCAAll(ctx, ns(string(a), string(b)))
		if err != nil {
			t.Fatal(err)
		}
		members := sortedNames(t, ctx, gca)
		for _, x := range members {
			for _, y := range []vertex.Name{a, b} {
				if !slices.Contains(g.ancestors(y), x) {
					t.Fatalf("gca member %s is not an ancestor of %s", x, y)
				}
			}
			for _, y := range members {
				if x != y && slices.Contains(g.ancestors(vertex.Name(y)), x) {
					t.Fatalf("gca member %s is an ancestor of member %s", x, y)
				}
			}
		}

		rng, err := d.Range(ctx, ns(string(a)), ns(string(b)))
		if err != nil {
			t.Fatal(err)
		}
		desc, err := d.Descendants(ctx, ns(string(a)))
		if err != nil {
			t.Fatal(err)
		}
		var want []string
		for _, x := range sortedNames(t, ctx, desc) {
			if slices.Contains(g.ancestors(b), x) {
				want = append(want, x)
			}
		}
		if got := sortedNames(t, ctx, rng); !slices.Equal(got, want) {
			t.Fatalf("Range(%s, %s) = %v, want %v", a, b, got, want)
		}
	})
}

func TestCloneProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		g := genGraph(t)
		server := build(t, g)

		data, err := server.ExportCloneData(ctx, ExportOptions{IncludeNonMaster: true})
		if err != nil {
			t.Fatal(err)
		}
		client := NewMem(Options{Remote: server})
		if err := client.ImportCloneData(ctx, data); err != nil {
			t.Fatalf("ImportCloneData: %v", err)
		}
		v := g.order[rapid.IntRange(0, len(g.order)-1).Draw(t, "v")]
		for _, q := range []func(*Dag) (set.Set, error){
			func(d *Dag) (set.Set, error) { return d.Ancestors(ctx, ns(string(v))) },
			func(d *Dag) (set.Set, error) { return d.Descendants(ctx, ns(string(v))) },
		} {
			want, err := q(server)
			if err != nil {
				t.Fatal(err)
			}
			got, err := q(client)
			if err != nil {
				t.Fatal(err)
			}
			if w, c := sortedNames(t, ctx, want), sortedNames(t, ctx, got); !slices.Equal(w, c) {
				t.Fatalf("clone answers %v, want %v", c, w)
			}
		}
	})
}
