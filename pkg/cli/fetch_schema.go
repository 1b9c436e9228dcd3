package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/crmmock/pkg/schemafetch"
)

func newFetchSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-schema",
		Short: "Fetch the schema once and write it to disk",
		Long: `Fetch the schema from --schema-url and write it verbatim to the schema
output path (default schema/schema.graphql).

When every attempt fails, crmmock exits 1 in production and otherwise logs
a warning and exits 0, leaving any previously written schema in place.
A response that is empty or does not parse is always an error.`,
		Example: `  # Refresh the checked-in schema
  crmmock fetch-schema --schema-url https://crm.example.com/schema.graphql

  # Fetch an OpenAPI document instead
  crmmock fetch-schema --schema-url https://crm.example.com/openapi.yaml --kind openapi -o schema/openapi.yaml`,
		Args: cobra.NoArgs,
		RunE: runFetchSchema,
	}
	cmd.Flags().StringP(flagOutput, "o", "", "Output path (default: schema/schema.graphql)")
	cmd.Flags().String(flagKind, "graphql", "Document kind: graphql, openapi or auto")
	return cmd
}

func parseKindFlag(s string) (schemafetch.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return schemafetch.KindAuto, nil
	case "graphql", "openapi":
		return schemafetch.ParseKind(s), nil
	default:
		return "", fmt.Errorf("invalid --kind %q: must be graphql, openapi or auto", s)
	}
}

func runFetchSchema(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireSchemaURL(); err != nil {
		return err
	}
	kindFlag, _ := cmd.Flags().GetString(flagKind)
	kind, err := parseKindFlag(kindFlag)
	if err != nil {
		return err
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	fetcher := schemafetch.New(schemafetch.WithLogger(log))

	doc, err := fetcher.Fetch(cmd.Context(), cfg.SchemaURL, schemafetch.Options{
		Timeout:    cfg.FetchTimeoutDuration(),
		MaxRetries: cfg.MaxRetries,
		Kind:       kind,
	})
	if err != nil {
		var invalid *schemafetch.InvalidDocumentError
		switch {
		case errors.As(err, &invalid),
			errors.Is(err, schemafetch.ErrInvalidURL),
			errors.Is(err, context.Canceled):
			return err
		case cfg.IsProduction():
			return err
		}
		log.Warn("schema fetch failed, keeping existing schema",
			"url", cfg.SchemaURL,
			"output", cfg.SchemaOutput,
			"environment", cfg.Environment,
			"error", err,
		)
		return nil
	}

	if err := schemafetch.Persist(doc, cfg.SchemaOutput); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (%s) to %s\n", len(doc.Content), doc.Kind, cfg.SchemaOutput)
	return nil
}
