package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/finsight/internal/log"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(nil, log.NewNop()); err == nil {
		t.Error("NewStore(nil) expected error")
	}
	if _, err := NewStore(&pgxpool.Pool{}, nil); err != nil {
		t.Errorf("NewStore with nil logger: %v", err)
	}
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	store, err := NewStore(&pgxpool.Pool{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// Rejected before any database work.
	if _, err := store.AppendMessage(context.Background(), uuid.New(), "system", "hi", ""); err == nil {
		t.Error("AppendMessage with unknown role expected error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	collision := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	if !isUniqueViolation(collision) {
		t.Error("isUniqueViolation(unique violation) = false")
	}
	if !isUniqueViolation(fmt.Errorf("appending message: %w", collision)) {
		t.Error("isUniqueViolation(wrapped unique violation) = false")
	}
	if isUniqueViolation(&pgconn.PgError{Code: pgerrcode.NotNullViolation}) {
		t.Error("isUniqueViolation(not-null violation) = true")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Error("isUniqueViolation(plain error) = true")
	}
}
