package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.pool.QueryRow(
		ctx,
		`SELECT id, name, email, password_hash, created_at
         FROM users
         WHERE lower(email) = $1`,
		user.NormalizeEmail(email),
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("%w: %w", user.ErrStoreIO, err)
	}
	return u, nil
}

// Create relies on the unique index over lower(email); the database does the
// check and the insert atomically.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("%w: %w", user.ErrStoreIO, err)
	}

	return u, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
