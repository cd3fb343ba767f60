package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
	// ErrStoreIO marks a failure to durably read or write the credential store.
	ErrStoreIO = errors.New("credential store io")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Identity is the public part of a user carried in tokens and responses.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

// NormalizeEmail returns the lookup key for an email. Records keep the
// address exactly as it was submitted.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
