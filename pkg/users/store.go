package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-memdb"
)

var (
	// ErrUserExists is returned by Store.Add when the email is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by Store.Get for an unknown email.
	ErrUserNotFound = errors.New("user not found")
)

// Store records created users so duplicate emails can be detected.
// Implementations must make Add's check-and-insert atomic, and must call
// nextID only once the email is known to be free.
type Store interface {
	Add(ctx context.Context, u *User, nextID func() string) error
	Get(ctx context.Context, email string) (*User, error)
	Len() int
	Reset()
}

const tblUsers = "users"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblUsers: {
			Name: tblUsers,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
				},
			},
		},
	},
}

// MemoryStore is a Store backed by go-memdb. Emails are unique regardless
// of case.
type MemoryStore struct {
	mu sync.RWMutex
	db *memdb.MemDB
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &MemoryStore{db: db}, nil
}

// Add stores a copy of u. It returns ErrUserExists if the email is taken
// and a *ValidationError if it is blank. When nextID is not nil it assigns
// u.ID inside the write transaction, so rejected users never consume an id.
func (s *MemoryStore) Add(_ context.Context, u *User, nextID func() string) error {
	email := normalizeEmail(u.Email)
	if email == "" {
		return &ValidationError{Field: "email", Tag: "required", Message: "email is required"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblUsers, "id", email)
	if err != nil {
		return fmt.Errorf("add user %s: %w", email, err)
	}
	if existing != nil {
		return fmt.Errorf("add user %s: %w", email, ErrUserExists)
	}

	if nextID != nil {
		u.ID = nextID()
	}
	stored := *u
	stored.Email = strings.TrimSpace(u.Email)
	if err := txn.Insert(tblUsers, &stored); err != nil {
		return fmt.Errorf("add user %s: %w", email, err)
	}
	txn.Commit()

	return nil
}

// Get returns a copy of the user registered under email.
func (s *MemoryStore) Get(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "id", normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", email, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("find user %s: %w", email, ErrUserNotFound)
	}

	u := *raw.(*User)
	return &u, nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblUsers, "id")
	if err != nil {
		return 0
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n
}

// Reset removes every user.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		// The schema is static and known to be valid.
		panic(err)
	}
	s.db = db
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
