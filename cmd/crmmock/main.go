// crmmock CLI - mock CRM GraphQL server backed by a remote schema
package main

import (
	"os"

	"github.com/getmockd/crmmock/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate

	os.Exit(cli.Execute())
}
