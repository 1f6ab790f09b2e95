package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"check violation", &pq.Error{Code: "23514"}, ErrorClassPermanent},
		{"wrapped deadlock", fmt.Errorf("update stock: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"domain error", ErrInsufficientStock, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pq.Error{Code: "40001"}) {
		t.Error("Serialization failures should be retryable")
	}
	if IsRetryable(ErrProductNotFound) {
		t.Error("Domain errors must not be retried")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"})) {
		t.Error("Expected wrapped 23503 to be a foreign key violation")
	}
	if IsForeignKeyViolation(errors.New("boom")) {
		t.Error("Plain errors are not foreign key violations")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("Expected 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("Foreign key violation is not a unique violation")
	}
}
