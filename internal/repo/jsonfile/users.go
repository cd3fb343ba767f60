// Package jsonfile keeps the credential store in a single JSON document.
//
// The whole collection is held in memory and the file is rewritten on every
// insert. Writes go to a temp file in the same directory which is synced and
// renamed over the target, so a crash never leaves a half-written store.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/geocoder89/weatherhub/internal/domain/user"
)

type UsersRepo struct {
	path string

	// mu serializes find+append+persist so two signups for one email cannot
	// both pass the uniqueness check.
	mu    sync.RWMutex
	users []user.User
}

// Open loads the store at path. A missing file is an empty store; its
// directory is created so the first insert can persist.
func Open(path string) (*UsersRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %w", user.ErrStoreIO, dir, err)
		}
	}

	r := &UsersRepo{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", user.ErrStoreIO, path, err)
	}

	if len(data) == 0 {
		return r, nil
	}

	if err := json.Unmarshal(data, &r.users); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", user.ErrStoreIO, path, err)
	}

	return r, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(email); i >= 0 {
		return r.users[i], nil
	}
	return user.User{}, user.ErrNotFound
}

// Create appends u and persists the full collection before returning. On a
// failed write the in-memory collection is left as it was.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	if r.indexOf(u.Email) >= 0 {
		return user.User{}, user.ErrEmailTaken
	}

	next := make([]user.User, len(r.users), len(r.users)+1)
	copy(next, r.users)
	next = append(next, u)

	if err := r.persist(next); err != nil {
		return user.User{}, err
	}

	r.users = next
	return u, nil
}

func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Ping reports whether the store directory is still writable.
func (r *UsersRepo) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(r.path))
	if err != nil {
		return fmt.Errorf("%w: %w", user.ErrStoreIO, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", user.ErrStoreIO, filepath.Dir(r.path))
	}
	return nil
}

// linear scan, the store is small
func (r *UsersRepo) indexOf(email string) int {
	key := user.NormalizeEmail(email)
	for i := range r.users {
		if user.NormalizeEmail(r.users[i].Email) == key {
			return i
		}
	}
	return -1
}

func (r *UsersRepo) persist(users []user.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", user.ErrStoreIO, err)
	}

	dir := filepath.Dir(r.path)

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", user.ErrStoreIO, err)
	}
	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp: %w", user.ErrStoreIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp: %w", user.ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp: %w", user.ErrStoreIO, err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename: %w", user.ErrStoreIO, err)
	}

	// make the rename itself durable
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
