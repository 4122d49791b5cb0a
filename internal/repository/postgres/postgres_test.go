package postgres

import (
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun/driver/pgdriver"
)

var _ fielder = pgdriver.Error{}

type pgError map[byte]string

func (e pgError) Error() string       { return e['M'] }
func (e pgError) Field(k byte) string { return e[k] }

func TestSQLState(t *testing.T) {
	locked := pgError{'C': codeLockNotAvailable, 'M': "canceling statement due to lock timeout"}
	unique := pgError{'C': codeUniqueViolation, 'M': "duplicate key value violates unique constraint"}

	tests := []struct {
		name   string
		err    error
		locked bool
		unique bool
	}{
		{name: "lock timeout", err: locked, locked: true},
		{name: "wrapped lock timeout", err: errors.Wrap(locked, "locking attendance"), locked: true},
		{name: "unique violation", err: unique, unique: true},
		{name: "wrapped unique violation", err: errors.Wrap(unique, "creating attendance"), unique: true},
		{name: "no rows", err: sql.ErrNoRows},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.locked, IsLockNotAvailable(tt.err))
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			assert.False(t, IsForeignKeyViolation(tt.err))
		})
	}

	assert.True(t, IsForeignKeyViolation(pgError{'C': codeForeignKey}))
	assert.True(t, IsUndefinedTable(pgError{'C': codeUndefinedTable}))
	assert.Empty(t, sqlState(pgdriver.Error{}))
}
