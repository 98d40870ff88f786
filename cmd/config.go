package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/config"
	"github.com/derickschaefer/emdash/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage emdash configuration",
	Long: `Read and write emdash configuration stored in emdash.json.

Resolution order, highest first: command-line flags, environment variables,
.env in the working directory, emdash.json, built-in defaults.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template emdash.json in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit api_url to point at your backend, or set "+config.EnvAPIURL+".")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the resolved configuration, or one key of it",
	Example: `  emdash config get
  emdash config get api_url
  emdash config get --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.APIURL)
		if err != nil {
			return err
		}
		rows := resolvedConfigRows(cfg)

		if len(args) == 1 {
			key := strings.ToLower(args[0])
			for _, r := range rows {
				if r[0] == key {
					fmt.Fprintln(cmd.OutOrStdout(), r[1])
					return nil
				}
			}
			return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(config.Keys, ", "))
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}
		printKVTable(cmd.OutOrStdout(), rows)
		return nil
	},
}

// resolvedConfigRows lists every key in config.Keys order, followed by the
// files the values were read from.
func resolvedConfigRows(cfg *config.Config) [][]string {
	orNone := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return s
	}
	return [][]string{
		{"api_url", cfg.APIURL},
		{"default_format", cfg.Format},
		{"timeout", cfg.Timeout.String()},
		{"rate", fmt.Sprintf("%g", cfg.Rate)},
		{"db_path", orNone(cfg.DBPath)},
		{"default_station", cfg.Station},
		{"default_parameter", string(cfg.Parameter)},
		{"log_level", cfg.LogLevel},
		{"refresh_interval", cfg.RefreshInterval.String()},
		{"listen_addr", cfg.ListenAddr},
		{"cors_origins", orNone(cfg.CORSOrigins)},
		{"config_file", orNone(cfg.ConfigPath)},
		{"dotenv_file", orNone(cfg.DotEnvPath)},
	}
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in emdash.json",
	Example: `  emdash config set api_url https://aq.example.org
  emdash config set default_parameter no2
  emdash config set refresh_interval 5m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])

		path := config.DefaultConfigFile
		f, err := config.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			f = config.Template()
		} else if err != nil {
			return err
		}

		old, err := f.Get(key)
		if err != nil {
			return err
		}
		if err := f.Set(key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		val, _ := f.Get(key)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s in %s", key, val, path)
		if old != "" && old != val {
			fmt.Fprintf(cmd.OutOrStdout(), "  (was %s)", old)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
