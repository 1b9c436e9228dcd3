// Package graphql serves a GraphQL schema through a map of field resolvers.
//
// The schema comes from SDL text, usually fetched from a remote service by
// the schemafetch package. Queries are parsed, validated and coerced with
// gqlparser, then executed field by field: a field with a registered
// resolver calls it, any other field reads the same-named key of its
// parent value. Fields without data resolve to null.
//
// Basic usage:
//
//	schema, err := graphql.ParseSchema(sdl)
//	if err != nil {
//	    return err
//	}
//
//	exec, err := graphql.NewExecutor(schema, graphql.ResolverMap{
//	    "Mutation.createUser": createUser,
//	})
//	if err != nil {
//	    return err
//	}
//
//	mux.Handle("/graphql", graphql.NewHandler(exec))
//
// Errors reaching clients are normalized by ErrorFormatter. Resolvers return
// *Error values to pick a code such as BAD_REQUEST or CONFLICT; anything else
// is reported as INTERNAL_SERVER_ERROR with its message masked.
//
// The handler rejects requests a browser could send cross-site without a
// preflight: POST requests without a content type or with a form content
// type, and GET requests without a preflight header. See CheckCSRF.
package graphql
