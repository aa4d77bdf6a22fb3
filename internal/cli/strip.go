package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/dag"
)

// stripCommand removes vertices and their descendants.
func (c *CLI) stripCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:               "strip VERTEX...",
		Short:             "Remove vertices and all their descendants",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeVertices,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				in, err := argSet(ctx, d, args)
				if err != nil {
					return err
				}
				doomed, err := d.Descendants(ctx, in)
				if err != nil {
					return err
				}
				n, err := doomed.Count(ctx)
				if err != nil {
					return err
				}
				if dryRun {
					printInfo(cmd.OutOrStdout(), "Would remove %d vertices", n)
					return printNames(ctx, cmd.OutOrStdout(), doomed, 0, true)
				}
				prog := newProgress(loggerFromContext(ctx))
				if err := d.Strip(ctx, in); err != nil {
					return err
				}
				prog.done("stripped", "removed", n)
				printSuccess(cmd.OutOrStdout(), "Removed %d vertices", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the vertices that would be removed")
	return cmd
}
