package repository

import (
	"errors"

	"github.com/lib/pq"
)

// pgUniqueViolation SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// rowScanner shared by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}
