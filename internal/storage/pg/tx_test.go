package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	if !IsUniqueViolation(dup) {
		t.Error("23505 not recognised as a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("create booking: %w", dup)) {
		t.Error("wrapped 23505 not recognised")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Error("serialization failure misread as a unique violation")
	}
	if IsUniqueViolation(errors.New("duplicate key")) {
		t.Error("plain error misread as a unique violation")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil misread as a unique violation")
	}
}
