package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/clone"
	"github.com/matzehuels/segdag/pkg/dag"
)

// cloneCommand groups the bundle subcommands.
func (c *CLI) cloneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Export and import compressed clone bundles",
	}
	cmd.AddCommand(c.cloneExportCommand())
	cmd.AddCommand(c.cloneImportCommand())
	return cmd
}

func (c *CLI) cloneExportCommand() *cobra.Command {
	var opts dag.ExportOptions
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the segments and head names to a bundle",
		Long: `Write the segments and head names to a zstd-compressed bundle.

Without --all-names only the names needed to resolve the rest lazily are
included; a graph imported from such a bundle needs a remote to name other
vertices.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				data, err := d.ExportCloneData(ctx, opts)
				if err != nil {
					return err
				}
				raw, err := clone.Marshal(data)
				if err != nil {
					return err
				}
				if err := os.WriteFile(args[0], raw, 0644); err != nil {
					return fmt.Errorf("write %s: %w", args[0], err)
				}
				printSuccess(cmd.OutOrStdout(), "Exported %d segments, %d names", len(data.FlatSegments.Segments), len(data.IdMap))
				printFile(cmd.OutOrStdout(), args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.IncludeNonMaster, "non-master", false, "include the non-master group")
	cmd.Flags().BoolVar(&opts.AllNames, "all-names", false, "include every name")
	return cmd
}

func (c *CLI) cloneImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Initialize an empty store from a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			data, err := clone.Unmarshal(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return c.withDag(ctx, func(d *dag.Dag) error {
				spinner := newSpinner(ctx, cmd.ErrOrStderr(), "Importing bundle...")
				spinner.Start()
				prog := newProgress(loggerFromContext(ctx))
				if err := d.ImportCloneData(ctx, data); err != nil {
					spinner.StopWithError("Import failed")
					return err
				}
				spinner.Stop()
				prog.done("imported", "segments", len(data.FlatSegments.Segments), "names", len(data.IdMap))
				printSuccess(cmd.OutOrStdout(), "Imported %d vertices", data.IDs().Count())
				if !data.IsComplete() {
					printWarning(cmd.OutOrStdout(), "Bundle is lazy: %d of %d vertices are named", len(data.IdMap), data.IDs().Count())
				}
				return nil
			})
		},
	}
}
