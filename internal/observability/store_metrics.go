package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveStore times fn under op. Not-found and duplicate results are
// ordinary outcomes and are not counted as errors.
func (p *Prom) ObserveStore(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	if p == nil {
		return err
	}

	status := "ok"

	if err != nil && !errors.Is(err, user.ErrNotFound) && !errors.Is(err, user.ErrEmailTaken) {
		status = "error"
		p.StoreErrorsTotal.WithLabelValues(op, classifyStoreErr(err)).Inc()
	}
	p.StoreOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyStoreErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "40001":
			return "serialization_failure"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return "permission"
	case strings.Contains(msg, "no space"):
		return "disk_full"
	case strings.Contains(msg, "connection"):
		return "connection"
	case errors.Is(err, user.ErrStoreIO):
		return "io"
	default:
		return "unknown"
	}
}
