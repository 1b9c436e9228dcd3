package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
)

// osExit is replaced in tests.
var osExit = os.Exit

// NewRootCmd builds the crmmock command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crmmock",
		Short: "crmmock serves a mock CRM GraphQL API from a remote schema",
		Long: `crmmock fetches a GraphQL schema from a remote URL and serves a mock
createUser mutation against it, for local development and end-to-end tests.
It can also serve a Swagger UI page for a remote OpenAPI document.

Configuration can be provided via flags, CRMMOCK_* environment variables,
or a .crmmockrc.yaml file in the current directory.`,
		// No Run function here means 'crmmock' with no args will print help text by default.
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
	}

	addGlobalFlags(root)
	root.AddCommand(
		newServeCmd(),
		newFetchSchemaCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with os.Args and returns the process exit code.
func Execute() int {
	return run(context.Background(), NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return ExitError
	}
	return ExitOK
}
