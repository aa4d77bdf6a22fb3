package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds the id to each label.
	Detailed bool
	// Segments groups vertices of one flat segment into a cluster.
	Segments bool
}

var groupFill = map[vertex.Group]string{
	vertex.Master:    "white",
	vertex.NonMaster: "lightblue",
	vertex.Virtual:   "lightgrey",
}

type node struct {
	name    vertex.Name
	id      vertex.ID
	parents []vertex.Name
}

// ToDOT converts the vertices of s to Graphviz DOT. Edges point from child
// to parent; parents outside s are drawn as dashed stubs.
func ToDOT(ctx context.Context, d *dag.Dag, s set.Set, opts Options) (string, error) {
	sorted, err := d.Sort(ctx, s)
	if err != nil {
		return "", err
	}
	members, err := set.Collect(ctx, sorted)
	if err != nil {
		return "", err
	}
	nodes := make([]node, len(members))
	in := make(map[vertex.Name]bool, len(members))
	for i, n := range members {
		id, err := d.VertexID(ctx, n)
		if err != nil {
			return "", err
		}
		ps, err := d.ParentNames(ctx, n)
		if err != nil {
			return "", err
		}
		nodes[i] = node{name: n, id: id, parents: ps}
		in[n] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.05\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if opts.Segments {
		writeClusters(&buf, d, nodes, opts)
	} else {
		for _, n := range nodes {
			writeNode(&buf, "  ", n, opts)
		}
	}

	buf.WriteString("\n")
	stubs := make(map[vertex.Name]bool)
	for _, n := range nodes {
		for i, p := range n.parents {
			attrs := ""
			if i > 0 {
				attrs = " [color=grey40]"
			}
			if !in[p] {
				if !stubs[p] {
					stubs[p] = true
					fmt.Fprintf(&buf, "  %q [label=%q, style=dashed, fillcolor=none];\n", p.String(), p.String())
				}
				attrs = " [style=dashed]"
			}
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", n.name.String(), p.String(), attrs)
		}
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

func writeNode(buf *bytes.Buffer, indent string, n node, opts Options) {
	label := n.name.String()
	if opts.Detailed {
		label += "\n" + n.id.String()
	}
	attrs := []string{fmt.Sprintf("label=%q", label), "fillcolor=" + groupFill[n.id.Group()]}
	if n.id.Group() == vertex.Virtual {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, n.name.String(), strings.Join(attrs, ", "))
}

// writeClusters emits one subgraph per flat segment that holds members.
func writeClusters(buf *bytes.Buffer, d *dag.Dag, nodes []node, opts Options) {
	var segs []iddag.Segment
	for _, g := range vertex.Groups {
		segs = append(segs, d.DebugSegments(0, g)...)
	}
	i := 0
	for _, seg := range segs {
		var members []node
		for ; i < len(nodes) && nodes[i].id <= seg.High; i++ {
			if nodes[i].id < seg.Low {
				writeNode(buf, "  ", nodes[i], opts)
				continue
			}
			members = append(members, nodes[i])
		}
		if len(members) == 0 {
			continue
		}
		fmt.Fprintf(buf, "  subgraph \"cluster_%s\" {\n", seg.Low)
		fmt.Fprintf(buf, "    label=%q;\n    style=dashed;\n    color=grey60;\n", seg.Span().String())
		for _, n := range members {
			writeNode(buf, "    ", n, opts)
		}
		buf.WriteString("  }\n")
	}
	for _, n := range nodes[i:] {
		writeNode(buf, "  ", n, opts)
	}
}

// RenderSVG renders DOT to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz svg tag with one sized by its
// viewBox, starting at the origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
