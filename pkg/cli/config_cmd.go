package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/crmmock/pkg/cli/internal/output"
)

// ConfigEntry is one resolved setting in JSON output.
type ConfigEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// ConfigOutput is the JSON output of the config command.
type ConfigOutput struct {
	ConfigFile string        `json:"configFile,omitempty"`
	Entries    []ConfigEntry `json:"entries"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Long: `Show every configuration value after merging defaults, the config file,
environment variables and flags, together with the source of each value.`,
		Example: `  crmmock config
  CRMMOCK_PORT=8080 crmmock config --json`,
		Args: cobra.NoArgs,
		RunE: runConfig,
	}
	addServeFlags(cmd)
	return cmd
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	entries := cfg.Entries()
	if jsonOutput(cmd) {
		out := ConfigOutput{ConfigFile: cfg.ConfigFile, Entries: make([]ConfigEntry, 0, len(entries))}
		for _, e := range entries {
			out.Entries = append(out.Entries, ConfigEntry(e))
		}
		return output.JSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	file := cfg.ConfigFile
	if file == "" {
		file = "(none)"
	}
	fmt.Fprintf(w, "Config file: %s\n\n", file)

	tw := output.Table("KEY", "VALUE", "SOURCE")
	for _, e := range entries {
		tw.AppendRow([]interface{}{e.Key, e.Value, e.Source})
	}
	fmt.Fprintln(w, tw.Render())
	if cfg.SchemaURL == "" {
		output.Warn(cmd.ErrOrStderr(), "schemaUrl is not set; serve and fetch-schema will fail")
	}
	return nil
}
