package graphql

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// ErrEmptySchema is returned when the SDL source has no content.
var ErrEmptySchema = errors.New("schema is empty")

// Schema is a parsed GraphQL schema with accessors for the root operation
// types and their fields.
type Schema struct {
	ast       *ast.Schema
	source    string
	queries   map[string]*ast.FieldDefinition
	mutations map[string]*ast.FieldDefinition
}

// ParseSchema parses a GraphQL SDL string and returns a Schema.
func ParseSchema(sdl string) (*Schema, error) {
	return parseSchema("schema", sdl)
}

// ParseSchemaFile parses a GraphQL schema from a file and returns a Schema.
func ParseSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return parseSchema(path, string(data))
}

func parseSchema(name, sdl string) (*Schema, error) {
	if strings.TrimSpace(sdl) == "" {
		return nil, ErrEmptySchema
	}

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema from %s: %w", name, err)
	}

	return newSchema(schema, sdl), nil
}

func newSchema(schema *ast.Schema, source string) *Schema {
	s := &Schema{
		ast:       schema,
		source:    source,
		queries:   make(map[string]*ast.FieldDefinition),
		mutations: make(map[string]*ast.FieldDefinition),
	}

	if schema.Query != nil {
		for _, field := range schema.Query.Fields {
			if !isIntrospectionField(field.Name) {
				s.queries[field.Name] = field
			}
		}
	}
	if schema.Mutation != nil {
		for _, field := range schema.Mutation.Fields {
			s.mutations[field.Name] = field
		}
	}

	return s
}

// isIntrospectionField returns true if the field name is a built-in introspection field.
func isIntrospectionField(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

// AST returns the underlying gqlparser AST schema.
func (s *Schema) AST() *ast.Schema {
	return s.ast
}

// Source returns the original SDL source string.
func (s *Schema) Source() string {
	return s.source
}

// GetType returns a type definition by name, or nil if not found.
func (s *Schema) GetType(name string) *ast.Definition {
	return s.ast.Types[name]
}

// GetField returns a field definition by type and field name.
func (s *Schema) GetField(typeName, fieldName string) *ast.FieldDefinition {
	def := s.GetType(typeName)
	if def == nil {
		return nil
	}
	return def.Fields.ForName(fieldName)
}

// GetQueryField returns a query field definition by name, or nil if not found.
func (s *Schema) GetQueryField(name string) *ast.FieldDefinition {
	return s.queries[name]
}

// GetMutationField returns a mutation field definition by name, or nil if not found.
func (s *Schema) GetMutationField(name string) *ast.FieldDefinition {
	return s.mutations[name]
}

// RootType returns the root object type for an operation, or nil when the
// schema does not define one.
func (s *Schema) RootType(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Query:
		return s.ast.Query
	case ast.Mutation:
		return s.ast.Mutation
	case ast.Subscription:
		return s.ast.Subscription
	}
	return nil
}

// ListQueries returns all query field names in sorted order.
func (s *Schema) ListQueries() []string {
	return sortedKeys(s.queries)
}

// ListMutations returns all mutation field names in sorted order.
func (s *Schema) ListMutations() []string {
	return sortedKeys(s.mutations)
}

func sortedKeys(m map[string]*ast.FieldDefinition) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasQuery returns true if the schema has a query type with fields.
func (s *Schema) HasQuery() bool {
	return len(s.queries) > 0
}

// HasMutation returns true if the schema has a mutation type with fields.
func (s *Schema) HasMutation() bool {
	return len(s.mutations) > 0
}

// Validate checks that the schema can serve at least one operation.
func (s *Schema) Validate() error {
	if !s.HasQuery() && !s.HasMutation() {
		return fmt.Errorf("schema must define a Query or Mutation type with at least one field")
	}
	return nil
}

// implements reports whether the object type def satisfies the type
// condition named cond (itself, one of its interfaces, or a union holding it).
func (s *Schema) implements(def *ast.Definition, cond string) bool {
	if cond == "" || cond == def.Name {
		return true
	}
	for _, iface := range def.Interfaces {
		if iface == cond {
			return true
		}
	}
	if u := s.GetType(cond); u != nil && u.Kind == ast.Union {
		for _, member := range u.Types {
			if member == def.Name {
				return true
			}
		}
	}
	return false
}
