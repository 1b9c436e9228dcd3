// Package users implements the createUser mutation.
//
// The resolver fabricates the user the real backend would return: the id
// comes from an IDGenerator (fixed "1" unless configured otherwise) and
// confirmed is always true. Nothing is persisted. A Store can be injected to
// reject repeat emails, which lets tests exercise duplicate handling with an
// isolated store per test.
package users
