package services

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrPostNotFound is returned when no post matches a lookup.
	ErrPostNotFound = errors.New("post not found")
	// ErrDuplicateSlug is returned when a post's title produces a slug that
	// another post already uses.
	ErrDuplicateSlug = errors.New("duplicate slug")
	// ErrUserNotFound is returned when no user has the given ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError reports user input the store refused. Message is meant to
// be shown to the user.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Field + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// isUniqueViolation reports whether err is SQLite rejecting a duplicate value
// in a UNIQUE column.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
