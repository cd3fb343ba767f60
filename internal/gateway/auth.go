// Package gateway implements the authentication contract: signup, login,
// token verification and logout over a credential store and a token service.
//
// The gateway is stateless between requests. Every collaborator is passed in
// at construction so tests can run with fixture secrets and in-memory stores.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/weatherhub/internal/auth"
	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/geocoder89/weatherhub/internal/security"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = user.ErrNotFound
	ErrDuplicateEmail = user.ErrEmailTaken
	ErrStoreIO        = user.ErrStoreIO
	ErrWrongPassword  = errors.New("wrong password")
	ErrMissingToken   = errors.New("missing bearer token")
)

// IsUnauthenticated reports whether err means the caller presented no usable
// token.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, auth.ErrTokenInvalid) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrTokenRevoked)
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type TokenService interface {
	Issue(id user.Identity) (string, *auth.Claims, error)
	Verify(token string) (*auth.Claims, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

type StoreObserver interface {
	ObserveStore(op string, fn func() error) error
}

type passthroughObserver struct{}

func (passthroughObserver) ObserveStore(_ string, fn func() error) error { return fn() }

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      user.Identity
}

type Gateway struct {
	users    UserStore
	tokens   TokenService
	denylist auth.Denylist
	hasher   PasswordHasher
	observer StoreObserver
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Gateway)

func WithHasher(h PasswordHasher) Option { return func(g *Gateway) { g.hasher = h } }

func WithObserver(o StoreObserver) Option {
	return func(g *Gateway) {
		if o != nil {
			g.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.log = l } }

func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

func New(users UserStore, tokens TokenService, denylist auth.Denylist, opts ...Option) *Gateway {
	g := &Gateway{
		users:    users,
		tokens:   tokens,
		denylist: denylist,
		hasher:   security.NewHasher(0),
		observer: passthroughObserver{},
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.denylist == nil {
		g.denylist = auth.NewMemoryDenylist()
	}
	return g
}

func (g *Gateway) Signup(ctx context.Context, name, email, password string) (user.Identity, error) {
	hash, err := g.hasher.Hash(password)
	if err != nil {
		return user.Identity{}, err
	}

	u := user.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    g.now().UTC(),
	}

	var created user.User
	err = g.observer.ObserveStore("users_create", func() error {
		var err error
		created, err = g.users.Create(ctx, u)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateEmail) {
			g.log.ErrorContext(ctx, "signup store write failed", "err", err)
		}
		return user.Identity{}, err
	}

	g.log.InfoContext(ctx, "user_signed_up", "user_id", created.ID)
	return created.Identity(), nil
}

func (g *Gateway) Login(ctx context.Context, email, password string) (Session, error) {
	var found user.User
	err := g.observer.ObserveStore("users_get_by_email", func() error {
		var err error
		found, err = g.users.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	if err := g.hasher.Check(found.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return Session{}, ErrWrongPassword
		}
		return Session{}, fmt.Errorf("check password: %w", err)
	}

	token, claims, err := g.tokens.Issue(found.Identity())
	if err != nil {
		return Session{}, err
	}

	g.log.InfoContext(ctx, "user_logged_in", "user_id", found.ID)
	return Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      found.Identity(),
	}, nil
}

// Authenticate checks an Authorization header value and returns the token
// claims. It fails closed: any doubt is an error.
func (g *Gateway) Authenticate(ctx context.Context, authorization string) (*auth.Claims, error) {
	raw, err := ParseBearer(authorization)
	if err != nil {
		return nil, err
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	revoked, err := g.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, auth.ErrTokenRevoked
	}

	return claims, nil
}

// Logout revokes the token described by claims until it would expire.
func (g *Gateway) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return auth.ErrTokenInvalid
	}

	until := g.now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}

	if err := g.denylist.Revoke(ctx, claims.ID, until); err != nil {
		return err
	}

	g.log.InfoContext(ctx, "user_logged_out", "user_id", claims.UserID)
	return nil
}

// ParseBearer extracts the token from "Bearer <token>".
func ParseBearer(header string) (string, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", ErrMissingToken
	}
	return raw, nil
}
