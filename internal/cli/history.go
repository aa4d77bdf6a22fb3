package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/vertex"
)

// logEntry is one row of the log view.
type logEntry struct {
	Name    vertex.Name
	ID      vertex.ID
	Parents []vertex.Name
}

// logCommand lists ancestors newest first.
func (c *CLI) logCommand() *cobra.Command {
	var limit int
	var interactive bool
	cmd := &cobra.Command{
		Use:               "log [VERTEX...]",
		Short:             "List ancestors newest first",
		ValidArgsFunction: c.completeVertices,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				entries, err := loadLog(ctx, d, args, limit)
				if err != nil {
					return err
				}
				if interactive {
					_, err := tea.NewProgram(NewLogModel(entries), tea.WithContext(ctx), tea.WithOutput(cmd.OutOrStdout())).Run()
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(logHeaders, logRows(entries, -1)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "list at most n vertices (0 for all)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the log interactively")
	return cmd
}

// loadLog collects the ancestors of args in descending id order.
func loadLog(ctx context.Context, d *dag.Dag, args []string, limit int) ([]logEntry, error) {
	in, err := argSet(ctx, d, args)
	if err != nil {
		return nil, err
	}
	anc, err := d.Ancestors(ctx, in)
	if err != nil {
		return nil, err
	}
	var out []logEntry
	for name, err := range anc.IterRev(ctx) {
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(out) == limit {
			break
		}
		id, err := d.VertexID(ctx, name)
		if err != nil {
			return nil, err
		}
		ps, err := d.ParentNames(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, logEntry{Name: name, ID: id, Parents: ps})
	}
	return out, nil
}

var logHeaders = []string{"", "Vertex", "Id", "Group", "Parents"}

// logRows formats entries for renderTable, marking the cursor row.
func logRows(entries []logEntry, cursor int) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		mark := "  "
		if i == cursor {
			mark = "▸ "
		}
		group := e.ID.Group().String()
		parents := make([]string, len(e.Parents))
		for j, p := range e.Parents {
			parents[j] = p.String()
		}
		rows[i] = []string{mark, groupStyle[group].Render(e.Name.String()), e.ID.String(), group, strings.Join(parents, ", ")}
	}
	return rows
}
