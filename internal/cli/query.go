package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/dag"
	"github.com/matzehuels/segdag/pkg/set"
)

// setQuery maps an input set to a result set. It matches the method
// expressions of the Dag queries.
type setQuery func(d *dag.Dag, ctx context.Context, s set.Set) (set.Set, error)

// queryOpts holds the flags shared by set queries.
type queryOpts struct {
	limit   int
	reverse bool
	count   bool
}

// queryCommands returns the single-set queries. Each takes vertex
// arguments, or the whole graph when called without any.
func (c *CLI) queryCommands() []*cobra.Command {
	return []*cobra.Command{
		c.setCommand("ancestors", "Print the ancestors of the given vertices", (*dag.Dag).Ancestors),
		c.setCommand("descendants", "Print the descendants of the given vertices", (*dag.Dag).Descendants),
		c.setCommand("parents", "Print the direct parents of the given vertices", (*dag.Dag).Parents),
		c.setCommand("children", "Print the direct children of the given vertices", (*dag.Dag).Children),
		c.setCommand("heads", "Print the vertices without children in the set", (*dag.Dag).Heads),
		c.setCommand("roots", "Print the vertices without parents in the set", (*dag.Dag).Roots),
		c.setCommand("gca", "Print the greatest common ancestors", (*dag.Dag).GCAAll),
		c.setCommand("merges", "Print the merge vertices in the set", (*dag.Dag).Merges),
		c.setCommand("first-ancestors", "Print the first-parent history of the given vertices", (*dag.Dag).FirstAncestors),
	}
}

func (c *CLI) setCommand(use, short string, q setQuery) *cobra.Command {
	var opts queryOpts
	cmd := &cobra.Command{
		Use:   use + " [VERTEX...]",
		Short: short,
		Long: short + `.

A vertex is a full name, a unique hex prefix of a name, or either followed by
~N to walk N first parents back.`,
		ValidArgsFunction: c.completeVertices,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				in, err := argSet(ctx, d, args)
				if err != nil {
					return err
				}
				out, err := q(d, ctx, in)
				if err != nil {
					return err
				}
				return writeResult(ctx, cmd, out, opts)
			})
		},
	}
	addQueryFlags(cmd, &opts)
	return cmd
}

func addQueryFlags(cmd *cobra.Command, opts *queryOpts) {
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "print at most n vertices")
	cmd.Flags().BoolVarP(&opts.reverse, "reverse", "r", false, "print in descending id order")
	cmd.Flags().BoolVarP(&opts.count, "count", "c", false, "print only the number of vertices")
}

func writeResult(ctx context.Context, cmd *cobra.Command, s set.Set, opts queryOpts) error {
	if opts.count {
		n, err := s.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}
	return printNames(ctx, cmd.OutOrStdout(), s, opts.limit, opts.reverse)
}

// rangeCommand prints the vertices between roots and heads.
func (c *CLI) rangeCommand() *cobra.Command {
	var opts queryOpts
	var only bool
	cmd := &cobra.Command{
		Use:   "range ROOT HEAD",
		Short: "Print descendants of ROOT that are ancestors of HEAD",
		Long: `Print descendants of ROOT that are ancestors of HEAD.

With --only, print the ancestors of HEAD that are not ancestors of ROOT
instead.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeVertices,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				names, err := resolveNames(ctx, d, args)
				if err != nil {
					return err
				}
				roots, heads := set.FromNames(names[0]), set.FromNames(names[1])
				var out set.Set
				if only {
					out, err = d.Only(ctx, heads, roots)
				} else {
					out, err = d.Range(ctx, roots, heads)
				}
				if err != nil {
					return err
				}
				return writeResult(ctx, cmd, out, opts)
			})
		},
	}
	addQueryFlags(cmd, &opts)
	cmd.Flags().BoolVar(&only, "only", false, "print ancestors of HEAD that are not ancestors of ROOT")
	return cmd
}

// isAncestorCommand prints whether A is an ancestor of B.
func (c *CLI) isAncestorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "is-ancestor A B",
		Short:             "Print whether A is an ancestor of B",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeVertices,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withDag(ctx, func(d *dag.Dag) error {
				names, err := resolveNames(ctx, d, args)
				if err != nil {
					return err
				}
				ok, err := d.IsAncestor(ctx, names[0], names[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}
}
