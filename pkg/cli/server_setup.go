package cli

import (
	"github.com/getmockd/crmmock/pkg/cliconfig"
	"github.com/getmockd/crmmock/pkg/engine"
)

// engineConfig maps the resolved CLI configuration onto the server config.
func engineConfig(cfg *cliconfig.Config) *engine.Config {
	return &engine.Config{
		Port:             cfg.Port,
		SchemaURL:        cfg.SchemaURL,
		FetchTimeout:     cfg.FetchTimeoutDuration(),
		MaxRetries:       cfg.MaxRetries,
		OpenAPIURL:       cfg.OpenAPIURL,
		GraphQLPath:      cfg.GraphQLPath,
		HealthPath:       cfg.HealthPath,
		MetricsPath:      cfg.MetricsPath,
		DocsPath:         cfg.DocsPath,
		ShutdownTimeout:  cfg.ShutdownTimeoutDuration(),
		StrictValidation: cfg.StrictValidation,
		TrackDuplicates:  cfg.TrackDuplicates,
		IDStrategy:       cfg.IDStrategy,
		DebugErrors:      cfg.DebugErrors,
		CORSOrigins:      append([]string(nil), cfg.CORSOrigins...),
		MaxConnections:   cfg.MaxConnections,
	}
}
