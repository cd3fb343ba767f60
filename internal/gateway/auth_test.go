package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/weatherhub/internal/auth"
	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/geocoder89/weatherhub/internal/gateway"
	"github.com/geocoder89/weatherhub/internal/repo/jsonfile"
	"github.com/geocoder89/weatherhub/internal/repo/memory"
	"github.com/geocoder89/weatherhub/internal/security"
	"golang.org/x/crypto/bcrypt"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newGateway(t *testing.T, store gateway.UserStore) (*gateway.Gateway, *auth.Manager) {
	t.Helper()

	tokens := auth.NewManager("test-secret", time.Hour)
	g := gateway.New(store, tokens, auth.NewMemoryDenylist(),
		gateway.WithHasher(security.NewHasher(bcrypt.MinCost)),
		gateway.WithLogger(quietLog),
	)
	return g, tokens
}

func TestSignupThenLogin_ClaimsMatchStoredRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUsersRepo()
	g, tokens := newGateway(t, store)

	id, err := g.Signup(ctx, "Sam Doe", "Sam@Example.com", "password123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	stored, err := store.GetByEmail(ctx, "sam@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.PasswordHash == "password123" || stored.PasswordHash == "" {
		t.Fatalf("password must be stored hashed, got %q", stored.PasswordHash)
	}

	sess, err := g.Login(ctx, "sam@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := tokens.Verify(sess.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	want := stored.Identity()
	if claims.Identity() != want || id != want || sess.User != want {
		t.Fatalf("identity mismatch: claims=%+v signup=%+v session=%+v want=%+v", claims.Identity(), id, sess.User, want)
	}
	if d := sess.ExpiresAt.Sub(claims.IssuedAt.Time); d != time.Hour {
		t.Fatalf("token lifetime = %v, want 1h", d)
	}
}

func TestSignup_DuplicateEmailDiffersOnlyByCase(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, memory.NewUsersRepo())

	if _, err := g.Signup(ctx, "A", "alex@example.com", "pw"); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := g.Signup(ctx, "B", "ALEX@Example.COM", "other")
	if !errors.Is(err, gateway.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, memory.NewUsersRepo())

	if _, err := g.Signup(ctx, "Sam", "sam@example.com", "right"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	_, err := g.Login(ctx, "sam@example.com", "wrong")
	if !errors.Is(err, gateway.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("wrong password must never look like not found")
	}

	_, err = g.Login(ctx, "nobody@example.com", "right")
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSignup_ConcurrentSameEmailExactlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	store, err := jsonfile.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	g, _ := newGateway(t, store)

	const n = 10
	results := make(chan error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := g.Signup(ctx, fmt.Sprintf("user-%d", i), "race@example.com", "pw")
			results <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, gateway.ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 1 || dup != n-1 {
		t.Fatalf("got %d successes and %d duplicates, want 1 and %d", ok, dup, n-1)
	}
}

type failingStore struct{ *memory.UsersRepo }

func (f *failingStore) Create(context.Context, user.User) (user.User, error) {
	return user.User{}, fmt.Errorf("%w: disk full", user.ErrStoreIO)
}

func TestSignup_StoreIOErrorIsSurfaced(t *testing.T) {
	g, _ := newGateway(t, &failingStore{UsersRepo: memory.NewUsersRepo()})

	_, err := g.Signup(context.Background(), "Sam", "sam@example.com", "pw")
	if !errors.Is(err, gateway.ErrStoreIO) {
		t.Fatalf("expected ErrStoreIO, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	g, tokens := newGateway(t, memory.NewUsersRepo())

	good, _, err := tokens.Issue(user.Identity{ID: "u1", Name: "Sam", Email: "sam@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	foreign, _, err := auth.NewManager("other-secret", time.Hour).Issue(user.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: "Bearer " + good},
		{name: "lowercase scheme", header: "bearer " + good},
		{name: "empty", header: "", wantErr: gateway.ErrMissingToken},
		{name: "no scheme", header: good, wantErr: gateway.ErrMissingToken},
		{name: "scheme only", header: "Bearer ", wantErr: gateway.ErrMissingToken},
		{name: "basic", header: "Basic dXNlcjpwYXNz", wantErr: gateway.ErrMissingToken},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantErr: auth.ErrTokenInvalid},
		{name: "other secret", header: "Bearer " + foreign, wantErr: auth.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := g.Authenticate(ctx, tt.header)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if claims.UserID != "u1" {
					t.Fatalf("claims.UserID = %q", claims.UserID)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if !gateway.IsUnauthenticated(err) {
				t.Fatalf("expected %v to be an authentication failure", err)
			}
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, memory.NewUsersRepo())

	if _, err := g.Signup(ctx, "Sam", "sam@example.com", "pw"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	sess, err := g.Login(ctx, "sam@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := g.Authenticate(ctx, "Bearer "+sess.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := g.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	_, err = g.Authenticate(ctx, "Bearer "+sess.Token)
	if !errors.Is(err, auth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}

	// a fresh login is unaffected
	again, err := g.Login(ctx, "sam@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := g.Authenticate(ctx, "Bearer "+again.Token); err != nil {
		t.Fatalf("new session should be valid: %v", err)
	}
}

type brokenDenylist struct{}

func (brokenDenylist) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (brokenDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestAuthenticate_FailsClosedWhenDenylistUnavailable(t *testing.T) {
	tokens := auth.NewManager("s", time.Hour)
	g := gateway.New(memory.NewUsersRepo(), tokens, brokenDenylist{}, gateway.WithLogger(quietLog))

	tok, _, err := tokens.Issue(user.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := g.Authenticate(context.Background(), "Bearer "+tok); err == nil {
		t.Fatalf("expected an error when revocation cannot be checked")
	}
}
