package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/emdash/internal/render"
)

// Version is the release string. Release builds overwrite it via:
//
//	go build -ldflags "-X github.com/derickschaefer/emdash/cmd.Version=v0.3.0"
var Version = "v0.3.0-dev"

// BuildTime is optionally injected alongside Version:
//
//	-ldflags "-X github.com/derickschaefer/emdash/cmd.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = ""

// versionInfo is the structured payload for --format json output.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the emdash version and build information",
	Long: `Print the emdash version string and build metadata.

Default output is plain text. Use --format json for structured output.`,
	Example: `  emdash version
  emdash version --format json | jq .version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
		}
		w := cmd.OutOrStdout()

		switch globalFlags.Format {
		case render.FormatJSON:
			return writeJSON(w, info)
		case render.FormatJSONL:
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\n", b)
			return nil
		default:
			fmt.Fprintf(w, "emdash %s\n", info.Version)
			fmt.Fprintf(w, "go     %s\n", info.GoVersion)
			fmt.Fprintf(w, "os     %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(w, "built  %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
