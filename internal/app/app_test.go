package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
)

func TestMigrate_AppliesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payments").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate_WrapsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSchema_CascadesPaymentsWithBookings(t *testing.T) {
	if !strings.Contains(schema, "REFERENCES bookings (id) ON DELETE CASCADE") {
		t.Error("payments must be removed together with their booking")
	}
}

func TestKeyNamespace(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cmd  redis.Cmder
		want string
	}{
		{redis.NewStringCmd(ctx, "get", "cache:booking:42"), "cache"},
		{redis.NewBoolCmd(ctx, "setnx", "lock:payment:p1", "tok"), "lock"},
		{redis.NewStringCmd(ctx, "get", "plainkey"), "redis"},
		{redis.NewStatusCmd(ctx, "ping"), "redis"},
	}

	for _, tt := range tests {
		if got := keyNamespace(tt.cmd); got != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.cmd.Args(), tt.want, got)
		}
	}
}
