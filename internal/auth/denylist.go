package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/weatherhub/internal/cache"
)

// Denylist records revoked token ids until the token would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type MemoryDenylist struct {
	entries *cache.Cache
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: cache.New()}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	d.entries.SetUntil(jti, struct{}{}, until)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := d.entries.Get(jti)
	return ok, nil
}

// Sweep drops entries whose tokens have expired.
func (d *MemoryDenylist) Sweep() int {
	return d.entries.Sweep()
}

// KV is the subset of the redis client the shared denylist needs.
type KV interface {
	SetUntil(ctx context.Context, key, value string, exp time.Time) error
	Exists(ctx context.Context, key string) (bool, error)
}

const revokedKeyPrefix = "weatherhub:revoked:"

type RedisDenylist struct {
	kv KV
}

func NewRedisDenylist(kv KV) *RedisDenylist {
	return &RedisDenylist{kv: kv}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	if err := d.kv.SetUntil(ctx, revokedKeyPrefix+jti, "1", until); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ok, err := d.kv.Exists(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return ok, nil
}
