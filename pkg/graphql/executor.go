package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/getmockd/crmmock/pkg/logging"
)

var (
	// ErrNoResolvers is returned by NewExecutor when the resolver map is empty.
	ErrNoResolvers = errors.New("resolver map is empty")
	// ErrUnknownField is returned by NewExecutor when a resolver path names a
	// field the schema does not define.
	ErrUnknownField = errors.New("resolver registered for unknown field")
)

// ResolveParams carries the inputs of a single field resolution.
type ResolveParams struct {
	// Args are the field arguments with variables substituted and coerced.
	Args map[string]interface{}
	// Parent is the parent object value, nil for root fields.
	Parent interface{}
	// Field is the schema definition of the field being resolved.
	Field *ast.FieldDefinition
	// Path is the response path of the field.
	Path []interface{}
	// Operation is the type of the executing operation.
	Operation ast.Operation
}

// ResolverFunc resolves one field. Returning an *Error controls the code the
// client sees; any other error is reported as an internal error.
type ResolverFunc func(ctx context.Context, p ResolveParams) (interface{}, error)

// ResolverMap maps field paths such as "Mutation.createUser" to resolvers.
// Fields without a resolver read the same-named key of their parent value.
type ResolverMap map[string]ResolverFunc

// Result is the outcome of executing one request.
type Result struct {
	// Data is the result object, nil when execution did not start or a
	// non-null root field resolved to null.
	Data *OrderedMap
	// Errors are the tagged errors raised while handling the request.
	Errors []*Error
	// Operation is the executed operation type, empty if none was selected.
	Operation ast.Operation
	// OperationName is the executed operation's name.
	OperationName string
	// Executed is true once the request passed parsing, validation and
	// variable coercion.
	Executed bool
}

// Status returns the HTTP status for the result. Executed requests answer
// 200 even when fields failed; requests rejected before execution use the
// status hint of their first error.
func (r *Result) Status() int {
	if r.Executed || len(r.Errors) == 0 {
		return http.StatusOK
	}
	if s := r.Errors[0].Status; s != 0 {
		return s
	}
	return http.StatusBadRequest
}

// Executor runs GraphQL operations against a schema using a resolver map.
type Executor struct {
	schema    *Schema
	resolvers ResolverMap
	log       *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used for resolver panics.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = logging.Component(l, "graphql")
	}
}

// NewExecutor creates an Executor. The resolver map must be non-empty and
// every key must name a field the schema defines.
func NewExecutor(schema *Schema, resolvers ResolverMap, opts ...ExecutorOption) (*Executor, error) {
	if schema == nil {
		return nil, errors.New("schema is required")
	}
	if len(resolvers) == 0 {
		return nil, ErrNoResolvers
	}

	e := &Executor{
		schema:    schema,
		resolvers: make(ResolverMap, len(resolvers)),
		log:       logging.Nop(),
	}
	for path, fn := range resolvers {
		fp := ParseFieldPath(path)
		if fn == nil || fp.TypeName == "" || schema.GetField(fp.TypeName, fp.FieldName) == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, path)
		}
		e.resolvers[fp.String()] = fn
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schema returns the executor's schema.
func (e *Executor) Schema() *Schema {
	return e.schema
}

type executeOptions struct {
	readOnly bool
}

// ExecuteOption adjusts a single Execute call.
type ExecuteOption func(*executeOptions)

// ReadOnly rejects every operation that is not a query. Used for GET requests.
func ReadOnly() ExecuteOption {
	return func(o *executeOptions) {
		o.readOnly = true
	}
}

// Execute parses, validates and executes req.
func (e *Executor) Execute(ctx context.Context, req *GraphQLRequest, opts ...ExecuteOption) *Result {
	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if req == nil || strings.TrimSpace(req.Query) == "" {
		return failed(NewError(KindBadRequest, "GraphQL operations must contain a non-empty query"))
	}

	doc, perr := parser.ParseQuery(&ast.Source{Name: "request", Input: req.Query})
	if perr != nil {
		return failed(fromGQLError(KindParse, perr))
	}

	if errs := validator.Validate(e.schema.AST(), doc); len(errs) > 0 {
		res := &Result{}
		for _, ge := range errs {
			res.Errors = append(res.Errors, fromGQLError(KindQueryValidation, ge))
		}
		return res
	}

	op, opErr := selectOperation(doc, req.OperationName)
	if opErr != nil {
		return failed(opErr)
	}

	res := &Result{Operation: op.Operation, OperationName: op.Name}
	switch {
	case op.Operation == ast.Subscription:
		res.Errors = []*Error{NewError(KindBadRequest, subscriptionsDisabled)}
		return res
	case o.readOnly && op.Operation != ast.Query:
		err := NewError(KindBadRequest, mutationOverGetMessage)
		err.Status = http.StatusMethodNotAllowed
		res.Errors = []*Error{err}
		return res
	}

	vars, verr := validator.VariableValues(e.schema.AST(), op, req.Variables)
	if verr != nil {
		res.Errors = []*Error{fromGQLError(KindUserInput, verr)}
		return res
	}

	root := e.schema.RootType(op.Operation)
	if root == nil {
		res.Errors = []*Error{Errorf(KindQueryValidation, "schema does not support %s operations", op.Operation)}
		return res
	}

	ec := &execContext{
		ctx:       ctx,
		schema:    e.schema,
		resolvers: e.resolvers,
		log:       e.log,
		doc:       doc,
		op:        op,
		vars:      vars,
	}
	res.Data = ec.executeRoot(root)
	res.Errors = ec.errors
	res.Executed = true
	return res
}

func failed(err *Error) *Result {
	return &Result{Errors: []*Error{err}}
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, *Error) {
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, NewError(KindBadRequest, "document does not contain an operation")
		case 1:
			return doc.Operations[0], nil
		}
		err := NewError(KindBadRequest, "must provide operation name if query contains multiple operations")
		err.Code = CodeOperationNotFound
		return nil, err
	}

	if op := doc.Operations.ForName(name); op != nil {
		return op, nil
	}
	err := Errorf(KindBadRequest, "unknown operation named %q", name)
	err.Code = CodeOperationNotFound
	return nil, err
}

// fromGQLError converts a gqlparser error into a tagged Error, keeping its
// locations.
func fromGQLError(kind ErrorKind, err error) *Error {
	e := NewError(kind, err.Error())
	e.Err = err

	var ge *gqlerror.Error
	if !errors.As(err, &ge) {
		return e
	}

	e.Message = ge.Message
	for _, l := range ge.Locations {
		e.locations = append(e.locations, GraphQLErrorLocation{Line: l.Line, Column: l.Column})
	}
	if kind == KindUserInput && len(ge.Path) > 0 {
		e.Message = variableMessage(ge.Path, ge.Message)
	}
	return e
}

// variableMessage renders a variable coercion failure such as
// `Variable "$input.email" is required but was not provided`.
func variableMessage(path ast.Path, msg string) string {
	name := strings.TrimPrefix(path.String(), "variable.")
	if msg == "must be defined" {
		msg = "is required but was not provided"
	}
	return fmt.Sprintf("Variable %q %s", "$"+name, msg)
}

// execContext holds the state of one execution.
type execContext struct {
	ctx       context.Context
	schema    *Schema
	resolvers ResolverMap
	log       *slog.Logger
	doc       *ast.QueryDocument
	op        *ast.OperationDefinition
	vars      map[string]interface{}
	errors    []*Error
}

// fieldGroup is the set of fields that share one response key.
type fieldGroup struct {
	key    string
	fields []*ast.Field
}

func (ec *execContext) executeRoot(root *ast.Definition) *OrderedMap {
	out := NewOrderedMap()
	for _, g := range ec.collectFields(root, ec.op.SelectionSet, nil) {
		v, ok := ec.resolveField(root, nil, g, nil)
		if !ok {
			return nil
		}
		out.Set(g.key, v)
	}
	return out
}

func (ec *execContext) collectFields(def *ast.Definition, set ast.SelectionSet, groups []*fieldGroup) []*fieldGroup {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if !ec.included(s.Directives) {
				continue
			}
			key := s.Alias
			if key == "" {
				key = s.Name
			}
			if g := findGroup(groups, key); g != nil {
				g.fields = append(g.fields, s)
			} else {
				groups = append(groups, &fieldGroup{key: key, fields: []*ast.Field{s}})
			}
		case *ast.InlineFragment:
			if !ec.included(s.Directives) || !ec.schema.implements(def, s.TypeCondition) {
				continue
			}
			groups = ec.collectFields(def, s.SelectionSet, groups)
		case *ast.FragmentSpread:
			if !ec.included(s.Directives) {
				continue
			}
			frag := s.Definition
			if frag == nil {
				frag = ec.doc.Fragments.ForName(s.Name)
			}
			if frag == nil || !ec.schema.implements(def, frag.TypeCondition) {
				continue
			}
			groups = ec.collectFields(def, frag.SelectionSet, groups)
		}
	}
	return groups
}

func findGroup(groups []*fieldGroup, key string) *fieldGroup {
	for _, g := range groups {
		if g.key == key {
			return g
		}
	}
	return nil
}

// included evaluates @skip and @include.
func (ec *execContext) included(dirs ast.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(ec.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := dirs.ForName("include"); d != nil {
		if include, ok := d.ArgumentMap(ec.vars)["if"].(bool); ok && !include {
			return false
		}
	}
	return true
}

// resolveField resolves and completes one field group. The boolean is false
// when a null must propagate to the parent.
func (ec *execContext) resolveField(parentDef *ast.Definition, parent map[string]interface{}, g *fieldGroup, path []interface{}) (interface{}, bool) {
	f := g.fields[0]
	fieldPath := appendPath(path, g.key)

	switch f.Name {
	case "__typename":
		return parentDef.Name, true
	case "__schema", "__type":
		ec.addError(NewError(KindQueryValidation, introspectionDisabled), fieldPath, f)
		return nil, true
	}

	def := f.Definition
	if def == nil {
		def = parentDef.Fields.ForName(f.Name)
	}
	if def == nil {
		ec.addError(Errorf(KindQueryValidation, "Cannot query field %q on type %q", f.Name, parentDef.Name), fieldPath, f)
		return nil, true
	}

	var raw interface{}
	if fn, ok := ec.resolvers[parentDef.Name+"."+f.Name]; ok {
		v, err := ec.call(fn, ResolveParams{
			Args:      f.ArgumentMap(ec.vars),
			Parent:    parent,
			Field:     def,
			Path:      fieldPath,
			Operation: ec.op.Operation,
		})
		if err != nil {
			ec.addError(AsError(err), fieldPath, f)
			return nil, !def.Type.NonNull
		}
		raw = v
	} else if parent != nil {
		raw = parent[f.Name]
	}

	return ec.completeValue(def.Type, g.fields, raw, fieldPath)
}

func (ec *execContext) call(fn ResolverFunc, p ResolveParams) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			ec.log.Error("resolver panicked",
				"field", p.Field.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			v, err = nil, Internal(fmt.Errorf("resolver panic: %v", r))
		}
	}()
	return fn(ec.ctx, p)
}

func (ec *execContext) completeValue(t *ast.Type, fields []*ast.Field, value interface{}, path []interface{}) (interface{}, bool) {
	if isNil(value) {
		if t.NonNull {
			ec.addError(Internal(fmt.Errorf("cannot return null for non-nullable field at %s", formatPath(path))), path, fields[0])
			return nil, false
		}
		return nil, true
	}

	if t.Elem != nil {
		items, ok := toList(value)
		if !ok {
			ec.addError(Internal(fmt.Errorf("expected a list at %s, got %T", formatPath(path), value)), path, fields[0])
			return nil, !t.NonNull
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, ok := ec.completeValue(t.Elem, fields, item, appendPath(path, i))
			if !ok {
				return nil, !t.NonNull
			}
			out[i] = v
		}
		return out, true
	}

	named := ec.schema.GetType(t.NamedType)
	if named == nil {
		ec.addError(Internal(fmt.Errorf("unknown type %s", t.NamedType)), path, fields[0])
		return nil, !t.NonNull
	}

	switch named.Kind {
	case ast.Scalar, ast.Enum:
		return serializeLeaf(named, value), true
	case ast.Object, ast.Interface, ast.Union:
	default:
		ec.addError(Internal(fmt.Errorf("type %s cannot be an output type", named.Name)), path, fields[0])
		return nil, !t.NonNull
	}

	obj, err := toObject(value)
	if err != nil {
		ec.addError(Internal(fmt.Errorf("value at %s is not an object: %w", formatPath(path), err)), path, fields[0])
		return nil, !t.NonNull
	}

	concrete := named
	if named.Kind != ast.Object {
		concrete = ec.resolveAbstract(named, obj)
		if concrete == nil {
			ec.addError(Internal(fmt.Errorf("cannot determine the concrete type of %s at %s", named.Name, formatPath(path))), path, fields[0])
			return nil, !t.NonNull
		}
	}

	var set ast.SelectionSet
	for _, f := range fields {
		set = append(set, f.SelectionSet...)
	}

	out := NewOrderedMap()
	for _, g := range ec.collectFields(concrete, set, nil) {
		v, ok := ec.resolveField(concrete, obj, g, path)
		if !ok {
			return nil, !t.NonNull
		}
		out.Set(g.key, v)
	}
	return out, true
}

// resolveAbstract picks the object type for an interface or union value,
// using its __typename key or the only possible type.
func (ec *execContext) resolveAbstract(def *ast.Definition, obj map[string]interface{}) *ast.Definition {
	if name, ok := obj["__typename"].(string); ok {
		if t := ec.schema.GetType(name); t != nil && t.Kind == ast.Object && ec.schema.implements(t, def.Name) {
			return t
		}
		return nil
	}
	if possible := ec.schema.AST().GetPossibleTypes(def); len(possible) == 1 {
		return possible[0]
	}
	return nil
}

func (ec *execContext) addError(e *Error, path []interface{}, f *ast.Field) {
	var locs []GraphQLErrorLocation
	if f != nil && f.Position != nil {
		locs = append(locs, GraphQLErrorLocation{Line: f.Position.Line, Column: f.Position.Column})
	}
	ec.errors = append(ec.errors, e.at(path, locs...))
}

func appendPath(path []interface{}, elem interface{}) []interface{} {
	p := make([]interface{}, len(path)+1)
	copy(p, path)
	p[len(path)] = elem
	return p
}

func formatPath(path []interface{}) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func serializeLeaf(def *ast.Definition, v interface{}) interface{} {
	switch def.Name {
	case "ID", "String":
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	if def.Kind == ast.Enum {
		return fmt.Sprint(v)
	}
	return v
}

func toList(v interface{}) ([]interface{}, bool) {
	if l, ok := v.([]interface{}); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toObject returns v as a generic map. Structs go through their JSON form so
// json tags name the fields.
func toObject(v interface{}) (map[string]interface{}, error) {
	switch o := v.(type) {
	case map[string]interface{}:
		return o, nil
	case *OrderedMap:
		return o.values, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
