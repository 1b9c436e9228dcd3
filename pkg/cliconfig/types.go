// Package cliconfig provides configuration types and loading for the crmmock CLI.
package cliconfig

import (
	"time"
)

// Config represents the complete configuration for the crmmock CLI.
// Configuration values can come from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (CRMMOCK_* first, then the bare names)
// 3. Config file (--config, or .crmmockrc.yaml in the current directory)
// 4. Default values (lowest priority)
type Config struct {
	// Schema acquisition
	SchemaURL    string `yaml:"schemaUrl" json:"schemaUrl" validate:"omitempty,httpurl"`
	FetchTimeout int    `yaml:"fetchTimeoutMs" json:"fetchTimeoutMs" validate:"gt=0"`
	MaxRetries   int    `yaml:"maxRetries" json:"maxRetries" validate:"gte=1,lte=100"`
	SchemaOutput string `yaml:"schemaOutput" json:"schemaOutput" validate:"required"`

	// Logging
	LogLevel  string `yaml:"logLevel" json:"logLevel" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"logFormat" json:"logFormat" validate:"oneof=text json"`

	// Server
	Port            int      `yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	GraphQLPath     string   `yaml:"graphqlPath" json:"graphqlPath" validate:"startswith=/"`
	HealthPath      string   `yaml:"healthPath" json:"healthPath" validate:"startswith=/"`
	MetricsPath     string   `yaml:"metricsPath" json:"metricsPath" validate:"startswith=/"`
	ShutdownTimeout int      `yaml:"shutdownTimeoutMs" json:"shutdownTimeoutMs" validate:"gt=0"`
	CORSOrigins     []string `yaml:"corsOrigins" json:"corsOrigins" validate:"dive,required"`
	MaxConnections  int      `yaml:"maxConnections" json:"maxConnections" validate:"gte=0"`
	Environment     string   `yaml:"environment" json:"environment" validate:"required"`

	// API docs viewer
	OpenAPIURL string `yaml:"openapiUrl" json:"openapiUrl" validate:"omitempty,httpurl"`
	DocsPath   string `yaml:"docsPath" json:"docsPath" validate:"startswith=/,ne=/"`

	// Resolver behavior
	StrictValidation bool   `yaml:"strictValidation" json:"strictValidation"`
	TrackDuplicates  bool   `yaml:"trackDuplicates" json:"trackDuplicates"`
	IDStrategy       string `yaml:"idStrategy" json:"idStrategy" validate:"oneof=fixed sequence uuid xid"`
	DebugErrors      bool   `yaml:"debugErrors" json:"debugErrors"`

	// ConfigFile is the file the config was loaded from, if any.
	ConfigFile string `yaml:"-" json:"configFile,omitempty"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Config keys, as used in config files and in Sources.
const (
	KeySchemaURL        = "schemaUrl"
	KeyFetchTimeout     = "fetchTimeoutMs"
	KeyMaxRetries       = "maxRetries"
	KeySchemaOutput     = "schemaOutput"
	KeyLogLevel         = "logLevel"
	KeyLogFormat        = "logFormat"
	KeyPort             = "port"
	KeyGraphQLPath      = "graphqlPath"
	KeyHealthPath       = "healthPath"
	KeyMetricsPath      = "metricsPath"
	KeyShutdownTimeout  = "shutdownTimeoutMs"
	KeyCORSOrigins      = "corsOrigins"
	KeyMaxConnections   = "maxConnections"
	KeyEnvironment      = "environment"
	KeyOpenAPIURL       = "openapiUrl"
	KeyDocsPath         = "docsPath"
	KeyStrictValidation = "strictValidation"
	KeyTrackDuplicates  = "trackDuplicates"
	KeyIDStrategy       = "idStrategy"
	KeyDebugErrors      = "debugErrors"
)

// FetchTimeoutDuration returns FetchTimeout as a time.Duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Millisecond
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Millisecond
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	switch c.Environment {
	case "production", "prod":
		return true
	}
	return false
}

// Source returns where key's value came from.
func (c *Config) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}
