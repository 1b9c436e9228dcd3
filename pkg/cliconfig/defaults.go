package cliconfig

// DefaultPort is the default GraphQL server port.
const DefaultPort = 4000

// DefaultFetchTimeout is the default per-attempt schema fetch timeout in milliseconds.
const DefaultFetchTimeout = 10000

// DefaultMaxRetries is the default number of schema fetch attempts.
const DefaultMaxRetries = 3

// DefaultShutdownTimeout is the default graceful shutdown timeout in milliseconds.
const DefaultShutdownTimeout = 10000

// DefaultSchemaOutput is where fetch-schema writes the document by default.
const DefaultSchemaOutput = "schema/schema.graphql"

// DefaultEnvironment is the environment assumed when none is configured.
const DefaultEnvironment = "development"

// NewDefault creates a new Config with default values.
func NewDefault() *Config {
	cfg := &Config{
		FetchTimeout:     DefaultFetchTimeout,
		MaxRetries:       DefaultMaxRetries,
		SchemaOutput:     DefaultSchemaOutput,
		LogLevel:         "info",
		LogFormat:        "text",
		Port:             DefaultPort,
		GraphQLPath:      "/graphql",
		HealthPath:       "/health",
		MetricsPath:      "/metrics",
		ShutdownTimeout:  DefaultShutdownTimeout,
		CORSOrigins:      []string{"*"},
		Environment:      DefaultEnvironment,
		DocsPath:         "/docs",
		StrictValidation: true,
		IDStrategy:       "fixed",
		Sources:          make(map[string]string),
	}

	for _, key := range Keys {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

// Keys lists every config key in display order.
var Keys = []string{
	KeySchemaURL,
	KeyFetchTimeout,
	KeyMaxRetries,
	KeySchemaOutput,
	KeyLogLevel,
	KeyLogFormat,
	KeyPort,
	KeyGraphQLPath,
	KeyHealthPath,
	KeyMetricsPath,
	KeyShutdownTimeout,
	KeyCORSOrigins,
	KeyMaxConnections,
	KeyEnvironment,
	KeyOpenAPIURL,
	KeyDocsPath,
	KeyStrictValidation,
	KeyTrackDuplicates,
	KeyIDStrategy,
	KeyDebugErrors,
}
