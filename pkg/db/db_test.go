package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestConstraintClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique, fk bool
	}{
		{"pg unique", &pgconn.PgError{Code: UniqueViolation}, true, false},
		{"wrapped pg unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation}), true, false},
		{"gorm duplicate", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true, false},
		{"pg foreign key", fmt.Errorf("copy: %w", &pgconn.PgError{Code: ForeignKeyViolation}), false, true},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, false, true},
		{"other pg error", &pgconn.PgError{Code: "40001"}, false, false},
		{"plain", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Fatalf("IsUniqueViolation = %v, want %v", got, tt.unique)
			}
			if got := IsForeignKeyViolation(tt.err); got != tt.fk {
				t.Fatalf("IsForeignKeyViolation = %v, want %v", got, tt.fk)
			}
		})
	}
}

type failingBeginner struct{ err error }

func (f failingBeginner) Begin(context.Context) (pgx.Tx, error) { return nil, f.err }

func TestInTx(t *testing.T) {
	if err := InTx(context.Background(), nil, func(context.Context, pgx.Tx) error { return nil }); err == nil {
		t.Fatal("expected error for nil beginner")
	}

	beginErr := errors.New("pool closed")
	called := false
	err := InTx(context.Background(), failingBeginner{err: beginErr}, func(context.Context, pgx.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, beginErr) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}

type deadlineExecer struct {
	deadline time.Time
	ok       bool
	sql      string
}

func (d *deadlineExecer) Exec(ctx context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.deadline, d.ok = ctx.Deadline()
	d.sql = sql
	return pgconn.NewCommandTag("DELETE 2"), nil
}

func TestExecAppliesDefaultTimeout(t *testing.T) {
	e := &deadlineExecer{}
	start := time.Now()
	tag, err := Exec(context.Background(), e, "DELETE FROM sessions WHERE expires_at <= $1", start)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if tag.RowsAffected() != 2 || e.sql == "" {
		t.Fatalf("tag = %v, sql = %q", tag, e.sql)
	}
	if !e.ok || e.deadline.After(start.Add(DefaultTimeout+time.Second)) {
		t.Fatalf("deadline = %v (set %v), want within %v", e.deadline, e.ok, DefaultTimeout)
	}
}
