package cliconfig

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every crmmock environment variable.
const EnvPrefix = "CRMMOCK"

// envSpec is decoded by envconfig. Each variable is read as CRMMOCK_<NAME>
// and, when that is unset, as the bare <NAME>.
type envSpec struct {
	SchemaURL        *string   `envconfig:"SCHEMA_URL"`
	FetchTimeout     *int      `envconfig:"FETCH_TIMEOUT_MS"`
	MaxRetries       *int      `envconfig:"MAX_RETRIES"`
	SchemaOutput     *string   `envconfig:"SCHEMA_OUTPUT"`
	LogLevel         *string   `envconfig:"LOG_LEVEL"`
	LogFormat        *string   `envconfig:"LOG_FORMAT"`
	Port             *int      `envconfig:"PORT"`
	GraphQLPath      *string   `envconfig:"GRAPHQL_PATH"`
	HealthPath       *string   `envconfig:"HEALTH_PATH"`
	MetricsPath      *string   `envconfig:"METRICS_PATH"`
	ShutdownTimeout  *int      `envconfig:"SHUTDOWN_TIMEOUT_MS"`
	OpenAPIURL       *string   `envconfig:"OPENAPI_URL"`
	DocsPath         *string   `envconfig:"DOCS_PATH"`
	StrictValidation *bool     `envconfig:"STRICT_VALIDATION"`
	TrackDuplicates  *bool     `envconfig:"TRACK_DUPLICATES"`
	IDStrategy       *string   `envconfig:"ID_STRATEGY"`
	DebugErrors      *bool     `envconfig:"DEBUG_ERRORS"`
	CORSOrigins      *[]string `envconfig:"CORS_ORIGINS"`
	MaxConnections   *int      `envconfig:"MAX_CONNECTIONS"`
}

// EnvAppEnv is the bare fallback for CRMMOCK_ENV. It is read by hand since
// envconfig would fall back to ENV.
const EnvAppEnv = "APP_ENV"

// LoadEnvConfig reads configuration from the environment.
func LoadEnvConfig() (*Layer, error) {
	var vars envSpec
	if err := envconfig.Process(EnvPrefix, &vars); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	layer := &Layer{
		SchemaURL:        vars.SchemaURL,
		FetchTimeout:     vars.FetchTimeout,
		MaxRetries:       vars.MaxRetries,
		SchemaOutput:     vars.SchemaOutput,
		LogLevel:         vars.LogLevel,
		LogFormat:        vars.LogFormat,
		Port:             vars.Port,
		GraphQLPath:      vars.GraphQLPath,
		HealthPath:       vars.HealthPath,
		MetricsPath:      vars.MetricsPath,
		ShutdownTimeout:  vars.ShutdownTimeout,
		OpenAPIURL:       vars.OpenAPIURL,
		DocsPath:         vars.DocsPath,
		StrictValidation: vars.StrictValidation,
		TrackDuplicates:  vars.TrackDuplicates,
		IDStrategy:       vars.IDStrategy,
		DebugErrors:      vars.DebugErrors,
		CORSOrigins:      vars.CORSOrigins,
		MaxConnections:   vars.MaxConnections,
	}

	if v, ok := os.LookupEnv(EnvPrefix + "_ENV"); ok {
		layer.Environment = &v
	} else if v, ok := os.LookupEnv(EnvAppEnv); ok {
		layer.Environment = &v
	}

	return layer, nil
}
