package graphql

import (
	"context"
	"log/slog"

	"github.com/getmockd/crmmock/pkg/logging"
)

// ErrorFormatter normalizes errors into the client-facing shape
// { message, code, locations?, path?, extensions? } and logs each original
// error before it is sent. Internal errors are masked unless Debug is set.
type ErrorFormatter struct {
	debug bool
	log   *slog.Logger
}

// NewErrorFormatter creates an ErrorFormatter. With debug set, responses
// carry a details field holding the original error message.
func NewErrorFormatter(debug bool, log *slog.Logger) *ErrorFormatter {
	return &ErrorFormatter{debug: debug, log: logging.OrNop(log)}
}

// Format converts a single error.
func (f *ErrorFormatter) Format(ctx context.Context, err error) GraphQLError {
	e := AsError(err)
	f.logError(ctx, e)

	message := e.Message
	if e.Kind == KindInternal {
		message = internalMessage
	}

	ext := map[string]interface{}{"code": e.Code}
	if e.Status != 0 {
		ext["http"] = map[string]interface{}{"status": e.Status}
	}
	for k, v := range e.Fields {
		ext[k] = v
	}

	out := GraphQLError{
		Message:    message,
		Code:       e.Code,
		Locations:  e.locations,
		Path:       e.path,
		Extensions: ext,
	}
	if f.debug {
		if e.Err != nil {
			out.Details = e.Err.Error()
		} else {
			out.Details = e.Message
		}
	}
	return out
}

// FormatAll converts a list of errors, returning nil for an empty list.
func (f *ErrorFormatter) FormatAll(ctx context.Context, errs []*Error) []GraphQLError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]GraphQLError, len(errs))
	for i, e := range errs {
		out[i] = f.Format(ctx, e)
	}
	return out
}

func (f *ErrorFormatter) logError(ctx context.Context, e *Error) {
	attrs := []any{
		"code", e.Code,
		"kind", e.Kind.String(),
		"message", e.Message,
	}
	if len(e.path) > 0 {
		attrs = append(attrs, "path", formatPath(e.path))
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}

	if e.Kind == KindInternal {
		f.log.ErrorContext(ctx, "graphql internal error", attrs...)
		return
	}
	f.log.InfoContext(ctx, "graphql request error", attrs...)
}
