package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gunba/taxiv/pkg/legis"
)

func TestWrap_DeadlineClassified(t *testing.T) {
	err := wrap("get provision", context.DeadlineExceeded)
	if !errors.Is(err, legis.ErrDeadlineExceeded) {
		t.Errorf("wrap(deadline) = %v, want ErrDeadlineExceeded", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("original cause lost")
	}
}

func TestWrap_ConnectionClassClassified(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "08006", Message: "connection failure"}
	err := wrap("lexical query", pgErr)
	if !errors.Is(err, legis.ErrStoreUnavailable) {
		t.Errorf("wrap(08006) = %v, want ErrStoreUnavailable", err)
	}
}

func TestWrap_OtherErrorsPassThrough(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "unique violation"}
	err := wrap("upsert provisions", pgErr)
	if errors.Is(err, legis.ErrStoreUnavailable) || errors.Is(err, legis.ErrDeadlineExceeded) {
		t.Errorf("wrap(23505) misclassified: %v", err)
	}
	var got *pgconn.PgError
	if !errors.As(err, &got) || got.Code != "23505" {
		t.Errorf("original pg error lost: %v", err)
	}
}
