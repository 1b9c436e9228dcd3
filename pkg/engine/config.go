package engine

import (
	"fmt"
	"time"

	"github.com/getmockd/crmmock/pkg/schemafetch"
	"github.com/getmockd/crmmock/pkg/users"
)

// Default values for Config.
const (
	DefaultPort            = 4000
	DefaultGraphQLPath     = "/graphql"
	DefaultHealthPath      = "/health"
	DefaultMetricsPath     = "/metrics"
	DefaultDocsPath        = "/docs"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds everything the server needs to bootstrap and serve.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	SchemaURL    string
	FetchTimeout time.Duration
	MaxRetries   int

	// OpenAPIURL enables the docs viewer when set.
	OpenAPIURL string

	GraphQLPath string
	HealthPath  string
	MetricsPath string
	DocsPath    string

	ShutdownTimeout time.Duration

	StrictValidation bool
	TrackDuplicates  bool
	IDStrategy       string
	DebugErrors      bool

	CORSOrigins    []string
	MaxConnections int
}

// DefaultConfig returns a Config with default values for schemaURL.
func DefaultConfig(schemaURL string) *Config {
	return &Config{
		Port:             DefaultPort,
		SchemaURL:        schemaURL,
		FetchTimeout:     schemafetch.DefaultTimeout,
		MaxRetries:       schemafetch.DefaultMaxRetries,
		GraphQLPath:      DefaultGraphQLPath,
		HealthPath:       DefaultHealthPath,
		MetricsPath:      DefaultMetricsPath,
		DocsPath:         DefaultDocsPath,
		ShutdownTimeout:  DefaultShutdownTimeout,
		StrictValidation: true,
		IDStrategy:       users.StrategyFixed,
		CORSOrigins:      []string{"*"},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) fetchOptions(kind schemafetch.Kind) schemafetch.Options {
	return schemafetch.Options{
		Timeout:    c.FetchTimeout,
		MaxRetries: c.MaxRetries,
		Kind:       kind,
	}
}

func (c *Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return c.ShutdownTimeout
}
