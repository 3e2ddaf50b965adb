package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientCredits is returned when a quota has no credits left.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidInput is returned for arguments the repository refuses to send.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDatabaseError wraps driver failures.
	ErrDatabaseError = errors.New("database error")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidateUserID rejects empty user ids before they reach SQL.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id cannot be empty", ErrInvalidInput)
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// wrap maps driver errors onto the package sentinels.
func wrap(err error, resource, key, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return NewNotFoundError(resource, key)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s %s: %v", ErrConflict, op, resource, err)
	default:
		return fmt.Errorf("%w: %s %s: %v", ErrDatabaseError, op, resource, err)
	}
}

// likePattern escapes LIKE metacharacters and wraps s for substring search.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
