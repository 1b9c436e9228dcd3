package users

// User is the user object returned by createUser.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Initials  string `json:"initials"`
	Confirmed bool   `json:"confirmed"`
}

// CreateUserInput is the createUser mutation input.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Initials string `json:"initials" validate:"required,min=2"`
	// Password is accepted to match the real contract and then dropped.
	Password         string `json:"password,omitempty"`
	ClientMutationID string `json:"clientMutationId"`
}

// CreateUserPayload is the createUser mutation result.
type CreateUserPayload struct {
	User             *User  `json:"user"`
	ClientMutationID string `json:"clientMutationId"`
}
