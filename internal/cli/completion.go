package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/segdag/pkg/dag"
)

// maxCompletions bounds the candidates offered for one vertex argument.
const maxCompletions = 50

// completionCommand generates shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for segdag.

Bash:
  $ source <(segdag completion bash)

Zsh:
  $ segdag completion zsh > "${fpath[1]}/_segdag"

Fish:
  $ segdag completion fish | source

PowerShell:
  PS> segdag completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
}

// completeVertices offers head names matching toComplete, and the hex form
// of any vertex whose hex starts with it. It never creates a store.
func (c *CLI) completeVertices(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if _, err := os.Stat(c.Store); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	err := c.withDag(cmd.Context(), func(d *dag.Dag) error {
		ctx := cmd.Context()
		all, err := d.All(ctx)
		if err != nil {
			return err
		}
		heads, err := d.Heads(ctx, all)
		if err != nil {
			return err
		}
		for name, err := range heads.IterRev(ctx) {
			if err != nil {
				return err
			}
			if len(out) == maxCompletions {
				break
			}
			if strings.HasPrefix(name.String(), toComplete) {
				out = append(out, name.String())
			}
		}
		if toComplete != "" {
			for _, name := range d.VertexNamesByHexPrefix(toComplete, maxCompletions-len(out)) {
				out = append(out, name.Hex())
			}
		}
		return nil
	})
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
