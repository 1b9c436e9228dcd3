package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getmockd/crmmock/pkg/graphql"
	"github.com/getmockd/crmmock/pkg/logging"
	"github.com/getmockd/crmmock/pkg/metrics"
)

const duplicateMessage = "User with this email already exists"

// Resolver serves the createUser mutation.
type Resolver struct {
	strict  bool
	store   Store
	ids     IDGenerator
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrictValidation toggles input shape validation. It is on by default.
// With it off, only the schema's required-field checks apply.
func WithStrictValidation(strict bool) Option {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// WithStore enables duplicate email detection backed by s.
func WithStore(s Store) Option {
	return func(r *Resolver) {
		r.store = s
	}
}

// WithIDGenerator sets how user ids are produced.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Resolver) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = logging.Component(l, "users")
	}
}

// WithMetrics records created and rejected users in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a Resolver. Without options it validates strictly,
// keeps no state and gives every user the id "1".
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		strict: true,
		ids:    FixedID(DefaultID),
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateUser validates in and builds the payload. Errors are
// *ValidationError, ErrUserExists (wrapped) or a store failure.
func (r *Resolver) CreateUser(ctx context.Context, in CreateUserInput) (*CreateUserPayload, error) {
	if r.strict {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}

	user := &User{
		Email:     in.Email,
		Initials:  in.Initials,
		Confirmed: true,
	}

	if r.store != nil {
		if err := r.store.Add(ctx, user, r.ids.NextID); err != nil {
			return nil, err
		}
	} else {
		user.ID = r.ids.NextID()
	}

	return &CreateUserPayload{User: user, ClientMutationID: in.ClientMutationID}, nil
}

// Resolvers returns the resolver map to hand to graphql.NewExecutor.
func (r *Resolver) Resolvers() graphql.ResolverMap {
	return graphql.ResolverMap{
		"Mutation.createUser": r.resolveCreateUser,
	}
}

// resolveCreateUser converts the domain errors of CreateUser into tagged
// GraphQL errors.
func (r *Resolver) resolveCreateUser(ctx context.Context, p graphql.ResolveParams) (interface{}, error) {
	in, err := decodeInput(p.Args["input"])
	if err != nil {
		r.metrics.AddUserRejected(graphql.CodeBadRequest)
		return nil, graphql.BadRequest("input is malformed")
	}

	payload, err := r.CreateUser(ctx, in)
	if err != nil {
		gqlErr := toGraphQLError(err)
		r.metrics.AddUserRejected(gqlErr.Code)
		r.log.InfoContext(ctx, "createUser rejected", "code", gqlErr.Code, "error", err)
		return nil, gqlErr
	}

	r.metrics.AddUserCreated()
	r.log.DebugContext(ctx, "user created", "id", payload.User.ID)
	return payload, nil
}

func toGraphQLError(err error) *graphql.Error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return graphql.BadRequest(verr.Message).WithField("field", verr.Field)
	case errors.Is(err, ErrUserExists):
		return graphql.Conflict(duplicateMessage, err)
	}
	return graphql.Internal(err)
}

func decodeInput(raw interface{}) (CreateUserInput, error) {
	var in CreateUserInput
	if raw == nil {
		return in, errors.New("input is missing")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return in, fmt.Errorf("encode input: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}
