// Package engine assembles and runs the crmmock GraphQL server.
//
// # Lifecycle
//
// A Server moves through an explicit state machine:
//
//	Initializing ──Bootstrap──▶ Starting ──Start──▶ Running
//	     │                         │                  │
//	     ▼                         ▼                  ▼ Shutdown
//	   Failed ◀─────────────────────────────── ShuttingDown ──▶ Stopped
//
// Bootstrap fetches the GraphQL schema, attaches the resolver map and
// optionally loads an OpenAPI document for the docs viewer. A terminal fetch
// failure or an empty resolver map moves the server to Failed; there is no
// partial startup.
//
// Shutdown is idempotent. Concurrent or repeated calls wait for the first
// shutdown sequence and return its result.
//
// # Routing
//
// Requests pass through request id, access log, recover, metrics and CORS
// middleware. The health path is answered before any routing so it never
// reaches the GraphQL content-type gate.
//
// # Basic Usage
//
//	srv := engine.New(engine.DefaultConfig("https://crm.example/schema.graphql"),
//	    engine.WithLogger(log))
//	if err := srv.Bootstrap(ctx); err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package engine
