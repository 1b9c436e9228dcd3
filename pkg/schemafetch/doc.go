// Package schemafetch downloads API schema documents (GraphQL SDL or OpenAPI
// YAML/JSON) from a remote URL.
//
// Every attempt runs under its own timeout. Network errors, non-2xx statuses
// and timeouts are retried with a capped exponential backoff; a document that
// arrives but is empty or unparsable is reported immediately and never retried.
//
//	doc, err := schemafetch.New(schemafetch.WithLogger(log)).Fetch(ctx, url, schemafetch.Options{
//	    Timeout:    10 * time.Second,
//	    MaxRetries: 3,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := schemafetch.Persist(doc, "schema/schema.graphql"); err != nil {
//	    return err
//	}
package schemafetch
