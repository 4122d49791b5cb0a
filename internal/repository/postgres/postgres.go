package postgres

import (
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation  = "23505"
	codeForeignKey       = "23503"
	codeLockNotAvailable = "55P03"
	codeUndefinedTable   = "42P01"
)

// fielder is satisfied by pgdriver.Error.
type fielder interface {
	Field(k byte) string
}

func sqlState(err error) string {
	var pgErr fielder
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

// IsUniqueViolation reports a unique or primary key conflict.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// IsForeignKeyViolation reports a missing referenced row.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == codeForeignKey
}

// IsLockNotAvailable reports that lock_timeout expired while waiting on a row.
func IsLockNotAvailable(err error) bool {
	return sqlState(err) == codeLockNotAvailable
}

// IsUndefinedTable reports a query against a table that does not exist yet.
func IsUndefinedTable(err error) bool {
	return sqlState(err) == codeUndefinedTable
}
