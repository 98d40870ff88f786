package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/store"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Save and recall named station/parameter selections",
	Long: `Presets are named selections kept in the local database. A preset can be
applied to the next dashboard run, used from watch mode ("preset <name>") or
applied over HTTP by "emdash serve".

  emdash preset save downtown -s DEMO_1 -p no2
  emdash preset list
  emdash preset use downtown`,
}

// ─── preset save ──────────────────────────────────────────────────────────────

var presetSaveSel selectionFlags

var presetSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a selection under a name",
	Long: `Saves the selection under <name>. Flags not given fall back to the
configured default station and parameter. Saving an existing name replaces it.`,
	Example: `  emdash preset save downtown --station DEMO_1 --param no2
  emdash preset save ozone-watch -p o3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("preset name must not be empty")
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		sel, err := presetSaveSel.resolve(deps.Config)
		if err != nil {
			return err
		}
		p := store.NewPreset(name, sel)
		if err := st.PutPreset(p); err != nil {
			return fmt.Errorf("saving preset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved preset %s  (%s → %s)\n", p.ID, p.Name, sel)
		return nil
	},
}

// ─── preset list ──────────────────────────────────────────────────────────────

var presetListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List saved presets",
	Example: `  emdash preset list --format json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		format := resolveFormat(deps.Config.Format)
		if err := checkFormat(format); err != nil {
			return err
		}
		st, err := deps.RequireStore()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		presets, err := st.ListPresets()
		if err != nil {
			return fmt.Errorf("listing presets: %w", err)
		}
		if len(presets) == 0 && format == "table" {
			fmt.Fprintln(cmd.OutOrStdout(), "No presets saved.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: emdash preset save <name> --station <id> --param <parameter>")
			return nil
		}
		result := newResult(model.KindPresets, "preset list", presets, len(presets), start)
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose)
	},
}

// ─── preset show ──────────────────────────────────────────────────────────────

var presetShowCmd = &cobra.Command{
	Use:     "show <name|id>",
	Short:   "Show one preset",
	Example: `  emdash preset show downtown`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := withPreset(args[0], nil)
		if err != nil {
			return err
		}
		printSimpleTable(cmd.OutOrStdout(), []string{"FIELD", "VALUE"}, func(add func(...string)) {
			add("ID", p.ID)
			add("Name", p.Name)
			add("Station", p.Selection.StationID)
			add("Parameter", string(p.Selection.Parameter))
			add("Created", p.CreatedAt.Format(time.RFC3339))
		})
		return nil
	},
}

// ─── preset use ───────────────────────────────────────────────────────────────

var presetUseCmd = &cobra.Command{
	Use:   "use <name|id>",
	Short: "Make a preset the selection the next dashboard starts with",
	Example: `  emdash preset use downtown
  emdash dashboard`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := withPreset(args[0], func(st *store.Store, p model.Preset) error {
			return st.SaveLastSelection(p.Selection)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Using preset %s  (%s)\n", p.Name, p.Selection)
		return nil
	},
}

// ─── preset delete ────────────────────────────────────────────────────────────

var presetDeleteCmd = &cobra.Command{
	Use:     "delete <name|id>",
	Short:   "Delete a saved preset",
	Example: `  emdash preset delete downtown`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := withPreset(args[0], func(st *store.Store, p model.Preset) error {
			return st.DeletePreset(p.ID)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted preset %s  (%s)\n", p.ID, p.Name)
		return nil
	},
}

// withPreset opens the store, resolves ref and runs fn against it while the
// store is still open. fn may be nil.
func withPreset(ref string, fn func(*store.Store, model.Preset) error) (model.Preset, error) {
	deps, err := buildDeps()
	if err != nil {
		return model.Preset{}, err
	}
	st, err := deps.RequireStore()
	if err != nil {
		return model.Preset{}, err
	}
	defer deps.Close()

	p, err := st.GetPreset(ref)
	if errors.Is(err, store.ErrNotFound) {
		return model.Preset{}, fmt.Errorf("preset %q not found", ref)
	}
	if err != nil {
		return model.Preset{}, fmt.Errorf("reading preset: %w", err)
	}
	if fn != nil {
		if err := fn(st, p); err != nil {
			return model.Preset{}, err
		}
	}
	return p, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetSaveCmd)
	presetCmd.AddCommand(presetListCmd)
	presetCmd.AddCommand(presetShowCmd)
	presetCmd.AddCommand(presetUseCmd)
	presetCmd.AddCommand(presetDeleteCmd)

	presetSaveSel.register(presetSaveCmd)
	for _, c := range []*cobra.Command{presetShowCmd, presetUseCmd, presetDeleteCmd} {
		c.ValidArgsFunction = completePresetNames
	}
}
