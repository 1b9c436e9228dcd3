package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

const createUserMutation = `
mutation CreateUser($input: CreateUserInput!) {
	createUser(input: $input) {
		user { id confirmed email initials }
		clientMutationId
	}
}`

type testUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Initials  string `json:"initials"`
	Confirmed bool   `json:"confirmed"`
	Password  string `json:"-"`
}

func testResolvers() ResolverMap {
	return ResolverMap{
		"Mutation.createUser": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			in := p.Args["input"].(map[string]interface{})
			if in["email"] == "fail@b.com" {
				return nil, BadRequest("Invalid email format")
			}
			return map[string]interface{}{
				"user": map[string]interface{}{
					"id":        "1",
					"confirmed": true,
					"email":     in["email"],
					"initials":  in["initials"],
				},
				"clientMutationId": in["clientMutationId"],
			}, nil
		},
		"Mutation.archiveUser": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			switch p.Args["email"] {
			case "panic@b.com":
				panic("boom")
			case "internal@b.com":
				return nil, errors.New("connection refused: db-7")
			case "missing@b.com":
				return nil, BadRequest("user not found").WithField("field", "email")
			}
			return &testUser{ID: "7", Email: p.Args["email"].(string), Initials: "AR", Password: "secret"}, nil
		},
		"Query.me": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			return testUser{ID: "1", Email: "me@b.com", Initials: "ME", Confirmed: true}, nil
		},
		"Query.users": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			return []testUser{
				{ID: "1", Email: "a@b.com", Initials: "AB", Confirmed: true},
				{ID: "2", Email: "c@d.com", Initials: "CD", Confirmed: true},
			}, nil
		},
		"Query.search": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			return []interface{}{
				map[string]interface{}{"__typename": "User", "id": "1", "email": "a@b.com", "initials": "AB", "confirmed": true},
				map[string]interface{}{"__typename": "Company", "id": "c1", "name": "Acme"},
			}, nil
		},
		"Query.node": func(ctx context.Context, p ResolveParams) (interface{}, error) {
			return map[string]interface{}{"id": p.Args["id"]}, nil
		},
	}
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	schema, err := ParseSchema(testSchema)
	require.NoError(t, err)
	exec, err := NewExecutor(schema, testResolvers())
	require.NoError(t, err)
	return exec
}

func dataJSON(t *testing.T, res *Result) string {
	t.Helper()
	require.NotNil(t, res.Data)
	b, err := json.Marshal(res.Data)
	require.NoError(t, err)
	return string(b)
}

func validInput() map[string]interface{} {
	return map[string]interface{}{
		"input": map[string]interface{}{
			"email":            "a@b.com",
			"initials":         "AB",
			"clientMutationId": "x",
		},
	}
}

func TestNewExecutor_Errors(t *testing.T) {
	schema, err := ParseSchema(testSchema)
	require.NoError(t, err)

	_, err = NewExecutor(schema, nil)
	assert.ErrorIs(t, err, ErrNoResolvers)

	_, err = NewExecutor(schema, ResolverMap{})
	assert.ErrorIs(t, err, ErrNoResolvers)

	_, err = NewExecutor(schema, ResolverMap{"Mutation.deleteUser": testResolvers()["Mutation.createUser"]})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = NewExecutor(schema, ResolverMap{"createUser": testResolvers()["Mutation.createUser"]})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = NewExecutor(nil, testResolvers())
	assert.Error(t, err)
}

func TestExecute_CreateUser(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: createUserMutation, Variables: validInput()})

	require.Empty(t, res.Errors)
	assert.True(t, res.Executed)
	assert.Equal(t, ast.Mutation, res.Operation)
	assert.Equal(t, "CreateUser", res.OperationName)
	assert.Equal(t,
		`{"createUser":{"user":{"id":"1","confirmed":true,"email":"a@b.com","initials":"AB"},"clientMutationId":"x"}}`,
		dataJSON(t, res),
		"fields must come back in selection order")
}

func TestExecute_MissingRequiredVariableField(t *testing.T) {
	exec := newTestExecutor(t)

	vars := validInput()
	delete(vars["input"].(map[string]interface{}), "email")

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: createUserMutation, Variables: vars})

	assert.False(t, res.Executed)
	assert.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindUserInput, res.Errors[0].Kind)
	assert.Equal(t, CodeBadUserInput, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "email")
	assert.Contains(t, res.Errors[0].Message, "required")
	assert.Equal(t, http.StatusBadRequest, res.Status())
}

func TestExecute_MissingRequiredLiteralField(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `mutation {
		createUser(input: {initials: "AB", clientMutationId: "x"}) { user { id } }
	}`})

	assert.False(t, res.Executed)
	assert.Nil(t, res.Data)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CodeValidationFailed, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "email")
	assert.Contains(t, res.Errors[0].Message, "required")
	assert.NotEmpty(t, res.Errors[0].locations)
}

func TestExecute_ParseError(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: "mutation { createUser("})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindParse, res.Errors[0].Kind)
	assert.Equal(t, CodeParseFailed, res.Errors[0].Code)
	assert.NotEmpty(t, res.Errors[0].locations)
	assert.False(t, res.Executed)
}

func TestExecute_EmptyQuery(t *testing.T) {
	exec := newTestExecutor(t)

	for _, req := range []*GraphQLRequest{nil, {Query: ""}, {Query: "  \n"}} {
		res := exec.Execute(context.Background(), req)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, KindBadRequest, res.Errors[0].Kind)
	}
}

func TestExecute_UnknownField(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `{ leads { id } }`})

	require.NotEmpty(t, res.Errors)
	assert.Equal(t, CodeValidationFailed, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "leads")
}

func TestExecute_ResolverBadRequestKeepsSiblings(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `mutation {
		gone: archiveUser(email: "missing@b.com") { id }
		kept: archiveUser(email: "ok@b.com") { id email }
	}`})

	require.True(t, res.Executed)
	require.Len(t, res.Errors, 1)
	e := res.Errors[0]
	assert.Equal(t, CodeBadRequest, e.Code)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, []interface{}{"gone"}, e.Path())
	assert.Equal(t, "email", e.Fields["field"])
	assert.Equal(t, `{"gone":null,"kept":{"id":"7","email":"ok@b.com"}}`, dataJSON(t, res))
	assert.Equal(t, http.StatusOK, res.Status())
}

func TestExecute_NonNullRootErrorNullsData(t *testing.T) {
	exec := newTestExecutor(t)

	vars := validInput()
	vars["input"].(map[string]interface{})["email"] = "fail@b.com"

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: createUserMutation, Variables: vars})

	assert.True(t, res.Executed)
	assert.Nil(t, res.Data, "no partial user data")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Invalid email format", res.Errors[0].Message)
	assert.Equal(t, []interface{}{"createUser"}, res.Errors[0].Path())
}

func TestExecute_ResolverPanicAndInternalError(t *testing.T) {
	exec := newTestExecutor(t)

	for _, email := range []string{"panic@b.com", "internal@b.com"} {
		t.Run(email, func(t *testing.T) {
			res := exec.Execute(context.Background(), &GraphQLRequest{
				Query:     `mutation($e: String!) { archiveUser(email: $e) { id } }`,
				Variables: map[string]interface{}{"e": email},
			})

			require.Len(t, res.Errors, 1)
			assert.Equal(t, KindInternal, res.Errors[0].Kind)
			assert.Equal(t, CodeInternal, res.Errors[0].Code)
			assert.Equal(t, `{"archiveUser":null}`, dataJSON(t, res))
		})
	}
}

func TestExecute_StructsListsAndTypename(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `{
		me { __typename id initials role }
		users { id email }
	}`})

	require.Empty(t, res.Errors)
	assert.Equal(t,
		`{"me":{"__typename":"User","id":"1","initials":"ME","role":null},"users":[{"id":"1","email":"a@b.com"},{"id":"2","email":"c@d.com"}]}`,
		dataJSON(t, res))
}

func TestExecute_UnionFragmentsAndDirectives(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{
		Query: `query Search($withName: Boolean!) {
			search(term: "a") {
				__typename
				... on User { email }
				...CompanyFields
			}
		}
		fragment CompanyFields on Company { name @include(if: $withName) id @skip(if: true) }`,
		Variables: map[string]interface{}{"withName": true},
	})

	require.Empty(t, res.Errors)
	assert.Equal(t,
		`{"search":[{"__typename":"User","email":"a@b.com"},{"__typename":"Company","name":"Acme"}]}`,
		dataJSON(t, res))
}

func TestExecute_AmbiguousInterfaceValue(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `{ node(id: "1") { id } }`})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, KindInternal, res.Errors[0].Kind)
	assert.Equal(t, `{"node":null}`, dataJSON(t, res))
}

func TestExecute_OperationSelection(t *testing.T) {
	exec := newTestExecutor(t)
	query := `query A { me { id } } query B { users { id } }`

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: query})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeOperationNotFound, res.Errors[0].Code)

	res = exec.Execute(context.Background(), &GraphQLRequest{Query: query, OperationName: "B"})
	require.Empty(t, res.Errors)
	assert.Equal(t, `{"users":[{"id":"1"},{"id":"2"}]}`, dataJSON(t, res))

	res = exec.Execute(context.Background(), &GraphQLRequest{Query: query, OperationName: "C"})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, `"C"`)
}

func TestExecute_ReadOnlyRejectsMutations(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: createUserMutation, Variables: validInput()}, ReadOnly())

	assert.False(t, res.Executed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status())

	res = exec.Execute(context.Background(), &GraphQLRequest{Query: `{ me { id } }`}, ReadOnly())
	assert.Empty(t, res.Errors)
}

func TestExecute_IntrospectionDisabled(t *testing.T) {
	exec := newTestExecutor(t)

	res := exec.Execute(context.Background(), &GraphQLRequest{Query: `{ __schema { queryType { name } } }`})

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "introspection")
}
