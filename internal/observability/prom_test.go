package observability

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStore_CountsOnlyRealFailures(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveStore("users_create", func() error { return user.ErrEmailTaken })
	_ = p.ObserveStore("users_get_by_email", func() error { return user.ErrNotFound })
	ioErr := fmt.Errorf("%w: rename: %w", user.ErrStoreIO, os.ErrPermission)
	got := p.ObserveStore("users_create", func() error { return ioErr })

	if !errors.Is(got, ioErr) {
		t.Fatalf("ObserveStore must return fn's error, got %v", got)
	}

	if n := testutil.ToFloat64(p.StoreErrorsTotal.WithLabelValues("users_create", "permission")); n != 1 {
		t.Fatalf("permission errors = %v, want 1", n)
	}
	if n := testutil.CollectAndCount(p.StoreErrorsTotal); n != 1 {
		t.Fatalf("expected a single error series, got %d", n)
	}
}

func TestClassifyStoreErr(t *testing.T) {
	cases := map[string]error{
		"unique_violation": &pgconn.PgError{Code: "23505"},
		"pg_42P01":         &pgconn.PgError{Code: "42P01"},
		"io":               fmt.Errorf("%w: boom", user.ErrStoreIO),
		"unknown":          errors.New("boom"),
	}
	for want, err := range cases {
		if got := classifyStoreErr(err); got != want {
			t.Errorf("classifyStoreErr(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestNilProm_IsNoop(t *testing.T) {
	var p *Prom
	p.ObserveUpstream("forecast", "ok", time.Second)
	p.AuthEvent("login", "ok")
	if err := p.ObserveStore("op", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
