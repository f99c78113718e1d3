// Package server maintains the authoritative registered-user directory and
// keeps it synchronized with the durable store.
package server

import (
	"errors"
	"fmt"
)

// ErrUserExists is returned by Add when the name is already registered.
var ErrUserExists = errors.New("user already exists")

// AuthResult is the outcome of a credential check.
type AuthResult int

// Authentication outcomes.
const (
	AuthOK AuthResult = iota
	AuthWrongPassword
	AuthNoSuchUser
)

// UserDirectory is the name-keyed credential map. It performs no locking of
// its own; all access is serialized by the owning Core.
type UserDirectory struct {
	users map[string]User
	store UserStore
}

// NewUserDirectory loads the full user set from the store. A load failure is
// returned to the caller, which treats it as fatal at startup.
func NewUserDirectory(store UserStore) (*UserDirectory, error) {
	users, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading user directory: %w", err)
	}

	d := &UserDirectory{
		users: make(map[string]User, len(users)),
		store: store,
	}
	for _, u := range users {
		d.users[u.Name] = u
	}
	return d, nil
}

// Add registers a new user and synchronously persists the full directory
// snapshot. If the name is taken it fails with ErrUserExists. If the durable
// write fails the in-memory insert is rolled back so success is only ever
// reported when both the insert and the write succeeded.
func (d *UserDirectory) Add(user User) error {
	if _, exists := d.users[user.Name]; exists {
		return ErrUserExists
	}

	d.users[user.Name] = user
	if err := d.store.Save(d.snapshot()); err != nil {
		delete(d.users, user.Name)
		return fmt.Errorf("persisting user %q: %w", user.Name, err)
	}
	return nil
}

// Get returns the user registered under name, if any.
func (d *UserDirectory) Get(name string) (User, bool) {
	u, ok := d.users[name]
	return u, ok
}

// Authenticate checks a name/password pair against the directory.
func (d *UserDirectory) Authenticate(name, password string) AuthResult {
	u, ok := d.users[name]
	if !ok {
		return AuthNoSuchUser
	}
	if u.Password != password {
		return AuthWrongPassword
	}
	return AuthOK
}

// Len reports the number of registered users.
func (d *UserDirectory) Len() int {
	return len(d.users)
}

func (d *UserDirectory) snapshot() []User {
	users := make([]User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	return users
}
