// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row addressed by id or email does not
// exist. Handlers translate it into 404 (or 401 on credential paths).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting an account whose email is
// already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyValidated is returned by the conditional validation update
// when the account is already in the validated status.
var ErrAlreadyValidated = errors.New("already validated")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// mysqlDuplicateEntry is the MySQL error number for unique key violations.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique constraint violation.  The
// SQLite message is matched so the same repositories run under tests.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
