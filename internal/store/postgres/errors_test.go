package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: uniqueViolation}

	assert.True(t, isUniqueViolation(err))
	assert.True(t, isUniqueViolation(fmt.Errorf("postgres: insert: %w", err)))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: foreignKeyViolation}))
	assert.False(t, isUniqueViolation(errors.New("not a pg error")))
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := &pgconn.PgError{Code: foreignKeyViolation}

	assert.True(t, isForeignKeyViolation(err))
	assert.True(t, isForeignKeyViolation(fmt.Errorf("postgres: insert: %w", err)))
	assert.False(t, isForeignKeyViolation(&pgconn.PgError{Code: uniqueViolation}))
	assert.False(t, isForeignKeyViolation(errors.New("not a pg error")))
}
