package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/cache"
	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/render"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPDF = "pdf"
	formatPNG = "png"

	defaultScale = 2.0 // PNG scale for high-DPI displays

	artifactTTL = 7 * 24 * time.Hour
)

var validFormats = []string{formatDOT, formatSVG, formatPDF, formatPNG}

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string
	format   string
	segments bool
	detailed bool
	scale    float64
	noCache  bool
}

// renderCommand draws the ancestors of the given vertices, or the whole
// graph.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts
	cmd := &cobra.Command{
		Use:   "render [VERTEX...]",
		Short: "Draw the graph with Graphviz",
		Long: `Draw the ancestors of the given vertices, or the whole graph, as a
node-link diagram. Master vertices are white, non-master vertices blue and
virtual vertices grey. With --segments each flat segment is boxed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format == "" {
				opts.format = formatFromPath(opts.output)
			}
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				return c.runRender(ctx, cmd, d, args, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: dot, svg, pdf, png (default from --output, else svg)")
	cmd.Flags().BoolVar(&opts.segments, "segments", false, "box flat segments")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show ids in labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", defaultScale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "always redraw instead of reusing a cached artifact")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, cmd *cobra.Command, d *dag.Dag, args []string, opts renderOpts) error {
	in, err := argSet(ctx, d, args)
	if err != nil {
		return err
	}
	s, err := d.Ancestors(ctx, in)
	if err != nil {
		return err
	}
	dot, err := render.ToDOT(ctx, d, s, render.Options{Segments: opts.segments, Detailed: opts.detailed})
	if err != nil {
		return err
	}

	out, err := c.cachedConvert(ctx, dot, opts)
	if err != nil {
		return err
	}
	if opts.output == "" {
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess(cmd.ErrOrStderr(), "Rendered %s", opts.format)
	printFile(cmd.ErrOrStderr(), opts.output)
	return nil
}

// cachedConvert reuses an artifact from the store's cache when one was
// drawn from the same DOT source and settings.
func (c *CLI) cachedConvert(ctx context.Context, dot string, opts renderOpts) ([]byte, error) {
	if opts.format == formatDOT {
		return []byte(dot), nil
	}
	var store cache.Cache = cache.Nop()
	if !opts.noCache {
		fc, err := cache.NewFileCache(filepath.Join(c.Store, cacheDir))
		if err != nil {
			return nil, fmt.Errorf("open render cache: %w", err)
		}
		store = fc
	}
	defer store.Close()

	logger := loggerFromContext(ctx)
	key := cache.ArtifactKey(dot, cache.ArtifactKeyOpts{Format: opts.format, Scale: opts.scale})
	if out, ok, err := store.Get(ctx, key); err != nil {
		logger.Warn("render cache read failed", "error", err)
	} else if ok {
		logger.Debug("render cache hit", "format", opts.format, "bytes", len(out))
		return out, nil
	}

	out, err := convert(ctx, dot, opts)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, key, out, artifactTTL); err != nil {
		logger.Warn("render cache write failed", "error", err)
	}
	return out, nil
}

func convert(ctx context.Context, dot string, opts renderOpts) ([]byte, error) {
	if opts.format == formatDOT {
		return []byte(dot), nil
	}
	svg, err := render.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch opts.format {
	case formatPDF:
		return render.ToPDF(ctx, svg)
	case formatPNG:
		return render.ToPNG(ctx, svg, opts.scale)
	}
	return svg, nil
}

// formatFromPath picks the format from the output extension.
func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range validFormats {
		if f == ext {
			return f
		}
	}
	return formatSVG
}

func validateFormat(f string) error {
	for _, v := range validFormats {
		if v == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s (must be one of %s)", f, strings.Join(validFormats, ", "))
}
