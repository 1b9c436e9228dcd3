package cliconfig

import (
	"fmt"
	"strings"
)

// Layer is a partial configuration from one source. A nil field was not set
// by that source, so an explicit false or zero can be told apart from an
// absent key.
type Layer struct {
	SchemaURL        *string   `yaml:"schemaUrl"`
	FetchTimeout     *int      `yaml:"fetchTimeoutMs"`
	MaxRetries       *int      `yaml:"maxRetries"`
	SchemaOutput     *string   `yaml:"schemaOutput"`
	LogLevel         *string   `yaml:"logLevel"`
	LogFormat        *string   `yaml:"logFormat"`
	Port             *int      `yaml:"port"`
	GraphQLPath      *string   `yaml:"graphqlPath"`
	HealthPath       *string   `yaml:"healthPath"`
	MetricsPath      *string   `yaml:"metricsPath"`
	ShutdownTimeout  *int      `yaml:"shutdownTimeoutMs"`
	CORSOrigins      *[]string `yaml:"corsOrigins"`
	MaxConnections   *int      `yaml:"maxConnections"`
	Environment      *string   `yaml:"environment"`
	OpenAPIURL       *string   `yaml:"openapiUrl"`
	DocsPath         *string   `yaml:"docsPath"`
	StrictValidation *bool     `yaml:"strictValidation"`
	TrackDuplicates  *bool     `yaml:"trackDuplicates"`
	IDStrategy       *string   `yaml:"idStrategy"`
	DebugErrors      *bool     `yaml:"debugErrors"`
}

// fields maps config keys to the layer's field pointers.
func (l *Layer) fields() map[string]any {
	return map[string]any{
		KeySchemaURL:        &l.SchemaURL,
		KeyFetchTimeout:     &l.FetchTimeout,
		KeyMaxRetries:       &l.MaxRetries,
		KeySchemaOutput:     &l.SchemaOutput,
		KeyLogLevel:         &l.LogLevel,
		KeyLogFormat:        &l.LogFormat,
		KeyPort:             &l.Port,
		KeyGraphQLPath:      &l.GraphQLPath,
		KeyHealthPath:       &l.HealthPath,
		KeyMetricsPath:      &l.MetricsPath,
		KeyShutdownTimeout:  &l.ShutdownTimeout,
		KeyCORSOrigins:      &l.CORSOrigins,
		KeyMaxConnections:   &l.MaxConnections,
		KeyEnvironment:      &l.Environment,
		KeyOpenAPIURL:       &l.OpenAPIURL,
		KeyDocsPath:         &l.DocsPath,
		KeyStrictValidation: &l.StrictValidation,
		KeyTrackDuplicates:  &l.TrackDuplicates,
		KeyIDStrategy:       &l.IDStrategy,
		KeyDebugErrors:      &l.DebugErrors,
	}
}

// MergeConfig merges source into target, updating sources tracking.
// Only fields set in source are applied.
func MergeConfig(target *Config, source *Layer, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}

	apply(target, KeySchemaURL, &target.SchemaURL, source.SchemaURL, sourceType)
	apply(target, KeyFetchTimeout, &target.FetchTimeout, source.FetchTimeout, sourceType)
	apply(target, KeyMaxRetries, &target.MaxRetries, source.MaxRetries, sourceType)
	apply(target, KeySchemaOutput, &target.SchemaOutput, source.SchemaOutput, sourceType)
	apply(target, KeyLogLevel, &target.LogLevel, source.LogLevel, sourceType)
	apply(target, KeyLogFormat, &target.LogFormat, source.LogFormat, sourceType)
	apply(target, KeyPort, &target.Port, source.Port, sourceType)
	apply(target, KeyGraphQLPath, &target.GraphQLPath, source.GraphQLPath, sourceType)
	apply(target, KeyHealthPath, &target.HealthPath, source.HealthPath, sourceType)
	apply(target, KeyMetricsPath, &target.MetricsPath, source.MetricsPath, sourceType)
	apply(target, KeyShutdownTimeout, &target.ShutdownTimeout, source.ShutdownTimeout, sourceType)
	apply(target, KeyCORSOrigins, &target.CORSOrigins, source.CORSOrigins, sourceType)
	apply(target, KeyMaxConnections, &target.MaxConnections, source.MaxConnections, sourceType)
	apply(target, KeyEnvironment, &target.Environment, source.Environment, sourceType)
	apply(target, KeyOpenAPIURL, &target.OpenAPIURL, source.OpenAPIURL, sourceType)
	apply(target, KeyDocsPath, &target.DocsPath, source.DocsPath, sourceType)
	apply(target, KeyStrictValidation, &target.StrictValidation, source.StrictValidation, sourceType)
	apply(target, KeyTrackDuplicates, &target.TrackDuplicates, source.TrackDuplicates, sourceType)
	apply(target, KeyIDStrategy, &target.IDStrategy, source.IDStrategy, sourceType)
	apply(target, KeyDebugErrors, &target.DebugErrors, source.DebugErrors, sourceType)
}

func apply[T any](cfg *Config, key string, dst *T, v *T, sourceType string) {
	if v == nil {
		return
	}
	*dst = *v
	cfg.Sources[key] = sourceType
}

// Entry is one resolved config value with its source.
type Entry struct {
	Key    string
	Value  string
	Source string
}

// Entries returns every key with its formatted value, in Keys order.
func (c *Config) Entries() []Entry {
	values := map[string]any{
		KeySchemaURL:        c.SchemaURL,
		KeyFetchTimeout:     c.FetchTimeout,
		KeyMaxRetries:       c.MaxRetries,
		KeySchemaOutput:     c.SchemaOutput,
		KeyLogLevel:         c.LogLevel,
		KeyLogFormat:        c.LogFormat,
		KeyPort:             c.Port,
		KeyGraphQLPath:      c.GraphQLPath,
		KeyHealthPath:       c.HealthPath,
		KeyMetricsPath:      c.MetricsPath,
		KeyShutdownTimeout:  c.ShutdownTimeout,
		KeyCORSOrigins:      strings.Join(c.CORSOrigins, ","),
		KeyMaxConnections:   c.MaxConnections,
		KeyEnvironment:      c.Environment,
		KeyOpenAPIURL:       c.OpenAPIURL,
		KeyDocsPath:         c.DocsPath,
		KeyStrictValidation: c.StrictValidation,
		KeyTrackDuplicates:  c.TrackDuplicates,
		KeyIDStrategy:       c.IDStrategy,
		KeyDebugErrors:      c.DebugErrors,
	}

	entries := make([]Entry, 0, len(Keys))
	for _, key := range Keys {
		entries = append(entries, Entry{Key: key, Value: fmt.Sprint(values[key]), Source: c.Source(key)})
	}
	return entries
}
