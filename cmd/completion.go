package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/render"
)

// completionCmd prints a completion script for the emdash tree. Besides
// subcommands and flag names, the scripts complete --format and --param
// values and the names of presets saved in the local database.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for emdash.

To load completions in the current shell session:

  # bash
  source <(emdash completion bash)

  # zsh
  source <(emdash completion zsh)

  # fish
  emdash completion fish | source

Flag values complete too: --format offers the output formats, --param the
pollutant codes, and preset show/use/delete the saved preset names.

Persist across sessions by adding the source line to your shell profile
(~/.bashrc, ~/.zshrc, ~/.config/fish/completions/emdash.fish).`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		default:
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
	},
}

// completeParameters offers the pollutant codes for --param.
func completeParameters(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, p := range model.Parameters {
		if strings.HasPrefix(string(p), strings.ToLower(toComplete)) {
			out = append(out, string(p))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, f := range render.Formats {
		if strings.HasPrefix(f, toComplete) {
			out = append(out, f)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completePresetNames offers saved preset names for the first argument. A
// missing or unreadable database completes nothing.
func completePresetNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	deps, err := buildDeps()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer deps.Close()
	st, err := deps.RequireStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	presets, err := st.ListPresets()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, p := range presets {
		if strings.HasPrefix(p.Name, toComplete) {
			out = append(out, p.Name+"\t"+p.Selection.String())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
