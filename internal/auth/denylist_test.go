package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/weatherhub/internal/redisclient"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenylist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewMemoryDenylist()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already-expired tokens need no entry
	require.NoError(t, d.Revoke(ctx, "jti-2", time.Now().Add(-time.Second)))
	assert.Equal(t, 1, d.Sweep())
	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

type fakeKV struct {
	keys   map[string]time.Time
	setErr error
}

func (f *fakeKV) SetUntil(_ context.Context, key, _ string, exp time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.keys[key] = exp
	return nil
}

func (f *fakeKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.keys[key]
	return ok, nil
}

func TestRedisDenylist_UsesPrefixedKeys(t *testing.T) {
	t.Parallel()

	kv := &fakeKV{keys: map[string]time.Time{}}
	d := NewRedisDenylist(kv)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, d.Revoke(context.Background(), "abc", exp))
	assert.Equal(t, exp, kv.keys["weatherhub:revoked:abc"])

	ok, err := d.IsRevoked(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDenylist_WrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	d := NewRedisDenylist(&fakeKV{keys: map[string]time.Time{}, setErr: boom})

	err := d.Revoke(context.Background(), "abc", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, boom)
}

func TestRedisDenylist_Live(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redisclient.New(redisclient.Config{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx))

	d := NewRedisDenylist(client)
	jti := uuid.NewString()

	require.NoError(t, d.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	ok, err := d.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, ok)
}
