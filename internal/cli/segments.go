package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/buildinfo"
	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/iddag"
	"github.com/matzehuels/segdag/pkg/set"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// segmentsCommand prints the segment index.
func (c *CLI) segmentsCommand() *cobra.Command {
	var level int
	var group string
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Print the segments of one level",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := vertex.Groups
			if group != "" {
				g, err := vertex.ParseGroup(group)
				if err != nil {
					return err
				}
				groups = []vertex.Group{g}
			}
			if level < 0 || level > 255 {
				return fmt.Errorf("level %d out of range", level)
			}
			return c.withDag(cmd.Context(), func(d *dag.Dag) error {
				var rows [][]string
				for _, g := range groups {
					for _, s := range d.DebugSegments(iddag.Level(level), g) {
						rows = append(rows, segmentRow(s))
					}
				}
				if len(rows) == 0 {
					printInfo(cmd.OutOrStdout(), "No level %d segments", level)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Level", "Span", "Size", "Parents", "Flags"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&level, "level", "l", 0, "segment level")
	cmd.Flags().StringVarP(&group, "group", "g", "", "only show one group: master, non_master or virtual")
	return cmd
}

func segmentRow(s iddag.Segment) []string {
	parents := make([]string, len(s.Parents))
	for i, p := range s.Parents {
		parents[i] = p.String()
	}
	flags := ""
	if s.HasRoot() {
		flags = "root"
	}
	return []string{
		fmt.Sprint(s.Level),
		s.Span().String(),
		fmt.Sprint(s.Span().Count()),
		strings.Join(parents, ", "),
		flags,
	}
}

// checkCommand verifies the segment index and id map.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the integrity of the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDag(cmd.Context(), func(d *dag.Dag) error {
				problems := d.CheckSegments()
				if len(problems) == 0 {
					printSuccess(cmd.OutOrStdout(), "Store is consistent")
					return nil
				}
				for _, p := range problems {
					printError(cmd.OutOrStdout(), "%s", p)
				}
				return fmt.Errorf("%d integrity problems", len(problems))
			})
		},
	}
}

// statusCommand prints an overview of the store.
func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print vertex counts and store identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				return printStatus(ctx, cmd, d)
			})
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, d *dag.Dag) error {
	counts := make(map[vertex.Group]int, len(vertex.PersistedGroups))
	for _, g := range vertex.PersistedGroups {
		counts[g] = len(d.DebugSegments(0, g))
	}
	sizes := make([]int, 0, 3)
	for _, q := range []func(*dag.Dag, context.Context) (set.Set, error){(*dag.Dag).MasterGroup, (*dag.Dag).NonMasterGroup, (*dag.Dag).VirtualGroup} {
		s, err := q(d, ctx)
		if err != nil {
			return err
		}
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		sizes = append(sizes, n)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, StyleTitle.Render(appName)+" "+StyleDim.Render(d.Path()))
	printStats(w, sizes[0], sizes[1], sizes[2])
	printKeyValue(w, "build", buildinfo.Short())
	printKeyValue(w, "map id", d.MapID())
	printKeyValue(w, "version", d.VersionID())
	printKeyValue(w, "segments", fmt.Sprintf("%d master, %d non-master", counts[vertex.Master], counts[vertex.NonMaster]))
	dirty := "clean"
	if d.IsDirty() {
		dirty = StyleWarning.Render("dirty")
	}
	printKeyValue(w, "state", dirty)
	return nil
}
