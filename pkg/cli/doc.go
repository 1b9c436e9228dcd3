// Package cli implements the crmmock command-line interface.
//
// Commands:
//
//	crmmock serve          fetch the schema and serve the mock GraphQL API
//	crmmock fetch-schema   fetch the schema once and write it to disk
//	crmmock config         show the resolved configuration and its sources
//	crmmock version        show build information
//
// Every command exits 0 on success and 1 on any error.
package cli
