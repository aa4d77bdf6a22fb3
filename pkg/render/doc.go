// Package render draws commit graphs as Graphviz node-link diagrams.
//
// [ToDOT] turns a set of vertices into DOT text. Vertices are colored by
// group, and with [Options.Segments] each flat segment becomes a cluster so
// the segment index is visible next to the graph it summarizes.
//
//	dot, err := render.ToDOT(ctx, d, all, render.Options{Segments: true})
//	svg, err := render.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//
// [ToPDF] and [ToPNG] convert SVG with the external rsvg-convert tool from
// librsvg.
package render
