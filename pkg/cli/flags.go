package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getmockd/crmmock/pkg/cliconfig"
	"github.com/getmockd/crmmock/pkg/logging"
)

// Flags shared by every command.
const (
	flagConfig       = "config"
	flagJSON         = "json"
	flagSchemaURL    = "schema-url"
	flagFetchTimeout = "fetch-timeout-ms"
	flagMaxRetries   = "max-retries"
	flagLogLevel     = "log-level"
	flagLogFormat    = "log-format"
	flagEnv          = "env"
)

// Flags of the serve command.
const (
	flagPort             = "port"
	flagGraphQLPath      = "graphql-path"
	flagHealthPath       = "health-path"
	flagMetricsPath      = "metrics-path"
	flagShutdownTimeout  = "shutdown-timeout-ms"
	flagOpenAPIURL       = "openapi-url"
	flagDocsPath         = "docs-path"
	flagStrictValidation = "strict-validation"
	flagTrackDuplicates  = "track-duplicates"
	flagIDStrategy       = "id-strategy"
	flagDebugErrors      = "debug-errors"
	flagCORSOrigins      = "cors-origins"
	flagMaxConnections   = "max-connections"
)

// Flags of the fetch-schema command.
const (
	flagOutput = "output"
	flagKind   = "kind"
)

func addGlobalFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String(flagConfig, "", "Path to a config file (default: ./.crmmockrc.yaml)")
	pf.Bool(flagJSON, false, "Output command results in JSON format")
	pf.String(flagSchemaURL, "", "URL of the GraphQL schema (SDL) to serve")
	pf.Int(flagFetchTimeout, cliconfig.DefaultFetchTimeout, "Per-attempt schema fetch timeout in milliseconds")
	pf.Int(flagMaxRetries, cliconfig.DefaultMaxRetries, "Number of schema fetch attempts before giving up")
	pf.String(flagLogLevel, "info", "Log level (debug, info, warn, error)")
	pf.String(flagLogFormat, "text", "Log format (text, json)")
	pf.String(flagEnv, cliconfig.DefaultEnvironment, "Environment name; production makes fetch failures fatal")
}

func addServeFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntP(flagPort, "p", cliconfig.DefaultPort, "Port to listen on")
	fs.String(flagGraphQLPath, "/graphql", "Path of the GraphQL endpoint")
	fs.String(flagHealthPath, "/health", "Path of the health endpoint")
	fs.String(flagMetricsPath, "/metrics", "Path of the Prometheus metrics endpoint")
	fs.Int(flagShutdownTimeout, cliconfig.DefaultShutdownTimeout, "Graceful shutdown timeout in milliseconds")
	fs.String(flagOpenAPIURL, "", "URL of an OpenAPI document to serve in the docs viewer")
	fs.String(flagDocsPath, "/docs", "Path of the docs viewer")
	fs.Bool(flagStrictValidation, true, "Validate email format and initials length in createUser")
	fs.Bool(flagTrackDuplicates, false, "Reject repeated emails in createUser")
	fs.String(flagIDStrategy, "fixed", "User id strategy (fixed, sequence, uuid, xid)")
	fs.Bool(flagDebugErrors, false, "Include the original error message in error responses")
	fs.StringSlice(flagCORSOrigins, []string{"*"}, "Allowed CORS origins")
	fs.Int(flagMaxConnections, 0, "Maximum concurrent connections (0 = unlimited)")
}

// flagLayer collects the config values set explicitly on the command line.
func flagLayer(fs *pflag.FlagSet) *cliconfig.Layer {
	l := &cliconfig.Layer{}

	stringFlag(fs, flagSchemaURL, &l.SchemaURL)
	intFlag(fs, flagFetchTimeout, &l.FetchTimeout)
	intFlag(fs, flagMaxRetries, &l.MaxRetries)
	stringFlag(fs, flagLogLevel, &l.LogLevel)
	stringFlag(fs, flagLogFormat, &l.LogFormat)
	stringFlag(fs, flagEnv, &l.Environment)

	intFlag(fs, flagPort, &l.Port)
	stringFlag(fs, flagGraphQLPath, &l.GraphQLPath)
	stringFlag(fs, flagHealthPath, &l.HealthPath)
	stringFlag(fs, flagMetricsPath, &l.MetricsPath)
	intFlag(fs, flagShutdownTimeout, &l.ShutdownTimeout)
	stringFlag(fs, flagOpenAPIURL, &l.OpenAPIURL)
	stringFlag(fs, flagDocsPath, &l.DocsPath)
	boolFlag(fs, flagStrictValidation, &l.StrictValidation)
	boolFlag(fs, flagTrackDuplicates, &l.TrackDuplicates)
	stringFlag(fs, flagIDStrategy, &l.IDStrategy)
	boolFlag(fs, flagDebugErrors, &l.DebugErrors)
	intFlag(fs, flagMaxConnections, &l.MaxConnections)
	if changed(fs, flagCORSOrigins) {
		if v, err := fs.GetStringSlice(flagCORSOrigins); err == nil {
			l.CORSOrigins = &v
		}
	}

	stringFlag(fs, flagOutput, &l.SchemaOutput)
	return l
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

func stringFlag(fs *pflag.FlagSet, name string, dst **string) {
	if !changed(fs, name) {
		return
	}
	if v, err := fs.GetString(name); err == nil {
		*dst = &v
	}
}

func intFlag(fs *pflag.FlagSet, name string, dst **int) {
	if !changed(fs, name) {
		return
	}
	if v, err := fs.GetInt(name); err == nil {
		*dst = &v
	}
}

func boolFlag(fs *pflag.FlagSet, name string, dst **bool) {
	if !changed(fs, name) {
		return
	}
	if v, err := fs.GetBool(name); err == nil {
		*dst = &v
	}
}

// loadConfig resolves the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*cliconfig.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	return cliconfig.Load(cliconfig.LoadOptions{
		ConfigFile: path,
		Flags:      flagLayer(cmd.Flags()),
	})
}

func newLogger(cfg *cliconfig.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: w,
	})
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool(flagJSON)
	return v
}
