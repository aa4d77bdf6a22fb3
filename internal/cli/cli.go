// Package cli implements the segdag command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/buildinfo"
	"github.com/matzehuels/segdag/pkg/config"
	"github.com/matzehuels/segdag/pkg/dag"
	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/observability"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "segdag"

	// storeEnv overrides the default store directory.
	storeEnv = "SEGDAG_STORE"

	// defaultStore is used when neither --store nor SEGDAG_STORE is set.
	defaultStore = ".segdag"

	// cacheDir holds rendered artifacts inside the store directory.
	cacheDir = "cache"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Store is the store directory every command operates on.
	Store string
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	store := os.Getenv(storeEnv)
	if store == "" {
		store = defaultStore
	}
	return &CLI{Logger: newLogger(w, level), Store: store}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "segdag inspects segmented commit graphs",
		Long:         `segdag stores commit graphs as id segments on disk and answers ancestry queries over them. It is a debugging front end for segment stores.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.Store, "store", "s", c.Store, "store directory (env "+storeEnv+")")

	root.AddCommand(c.addCommand())
	root.AddCommand(c.exportCommand())
	for _, cmd := range c.queryCommands() {
		root.AddCommand(cmd)
	}
	root.AddCommand(c.rangeCommand())
	root.AddCommand(c.isAncestorCommand())
	root.AddCommand(c.logCommand())
	root.AddCommand(c.stripCommand())
	root.AddCommand(c.cloneCommand())
	root.AddCommand(c.segmentsCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Store Access
// =============================================================================

// open loads the store config and opens the graph. Hooks log every event
// at debug level.
func (c *CLI) open(ctx context.Context) (*dag.Dag, error) {
	cfg, err := config.ForStore(c.Store)
	if err != nil {
		return nil, err
	}
	opts := cfg.DagOptions()
	opts.Logger = c.Logger
	if c.Logger.GetLevel() <= log.DebugLevel {
		opts.Hooks = observability.NewLogHooks(c.Logger)
	}
	c.Logger.Debug("opening store", "path", cfg.Store.Path, "segment_size", cfg.Segment.Size, "read_only", cfg.Store.ReadOnly)
	return dag.Open(ctx, cfg.Store.Path, opts)
}

// withDag opens the graph, runs fn and closes it.
func (c *CLI) withDag(ctx context.Context, fn func(*dag.Dag) error) error {
	d, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

// =============================================================================
// Vertex Arguments
// =============================================================================

// resolveName turns a command-line argument into a vertex name. It accepts
// a full name, a unique hex prefix, and a trailing "~N" that walks N first
// parents back.
func resolveName(ctx context.Context, d *dag.Dag, arg string) (vertex.Name, error) {
	base, steps := arg, uint64(0)
	if i := strings.LastIndexByte(arg, '~'); i > 0 {
		n, err := strconv.ParseUint(arg[i+1:], 10, 64)
		if err == nil {
			base, steps = arg[:i], n
		}
	}

	name := vertex.Name(base)
	if !d.ContainsNameLocally(name) {
		matches := d.VertexNamesByHexPrefix(base, 2)
		switch len(matches) {
		case 0:
			ok, err := d.ContainsName(ctx, name)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", derrors.NotFoundName(name)
			}
		case 1:
			name = matches[0]
		default:
			return "", derrors.New(derrors.ErrCodeInvalidInput, "prefix %s is ambiguous: %s, %s, ...", base, matches[0].Hex(), matches[1].Hex())
		}
	}
	if steps == 0 {
		return name, nil
	}
	return d.FirstAncestorNth(ctx, name, steps)
}

// resolveNames resolves every argument.
func resolveNames(ctx context.Context, d *dag.Dag, args []string) ([]vertex.Name, error) {
	out := make([]vertex.Name, len(args))
	for i, a := range args {
		n, err := resolveName(ctx, d, a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		out[i] = n
	}
	return out, nil
}

// argSet resolves args into a set, or returns every vertex when args is
// empty.
func argSet(ctx context.Context, d *dag.Dag, args []string) (set.Set, error) {
	if len(args) == 0 {
		return d.All(ctx)
	}
	names, err := resolveNames(ctx, d, args)
	if err != nil {
		return nil, err
	}
	return set.FromNames(names...), nil
}

// persistedSet returns the master and non-master vertices.
func persistedSet(ctx context.Context, d *dag.Dag) (set.Set, error) {
	master, err := d.MasterGroup(ctx)
	if err != nil {
		return nil, err
	}
	nonMaster, err := d.NonMasterGroup(ctx)
	if err != nil {
		return nil, err
	}
	return set.Union(master, nonMaster), nil
}

// printNames writes one name per line, stopping after limit when positive.
func printNames(ctx context.Context, w io.Writer, s set.Set, limit int, reverse bool) error {
	seq := s.Iter(ctx)
	if reverse {
		seq = s.IterRev(ctx)
	}
	n := 0
	for name, err := range seq {
		if err != nil {
			return err
		}
		if limit > 0 && n == limit {
			break
		}
		fmt.Fprintln(w, name)
		n++
	}
	return nil
}
