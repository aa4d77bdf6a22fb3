package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/io"
)

// addCommand imports JSON parents files and flushes them.
func (c *CLI) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add FILE...",
		Short: "Add vertices from JSON parents files",
		Long: `Add vertices from JSON parents files and flush them to the store.

The file lists vertices with their parents; "master" names the heads that
go to the master group:

  {"vertices": [{"name": "A"}, {"name": "B", "parents": ["A"]}], "master": ["B"]}`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDag(cmd.Context(), func(d *dag.Dag) error {
				return runAdd(cmd, d, args)
			})
		},
	}
}

func runAdd(cmd *cobra.Command, d *dag.Dag, files []string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	before, err := count(ctx, d)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	for _, path := range files {
		g, err := io.ImportJSON(path)
		if err != nil {
			return err
		}
		spinner := newSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Adding %d vertices from %s...", len(g.Order), path))
		spinner.Start()
		err = g.AddTo(ctx, d)
		if err != nil {
			spinner.StopWithError("Add failed")
			return err
		}
		spinner.Stop()
		logger.Debug("added file", "path", path, "heads", len(g.Heads()))
	}

	after, err := count(ctx, d)
	if err != nil {
		return err
	}
	prog.done("flushed", "store", d.Path())
	printSuccess(cmd.OutOrStdout(), "Added %d vertices", after-before)
	return nil
}

// exportCommand writes the persisted graph as a JSON parents file.
func (c *CLI) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the graph as a JSON parents file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				s, err := persistedSet(ctx, d)
				if err != nil {
					return err
				}
				if err := io.ExportJSON(ctx, d, s, args[0]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Exported graph")
				printFile(cmd.OutOrStdout(), args[0])
				return nil
			})
		},
	}
}

func count(ctx context.Context, d *dag.Dag) (int, error) {
	all, err := d.All(ctx)
	if err != nil {
		return 0, err
	}
	return all.Count(ctx)
}
