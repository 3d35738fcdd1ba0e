package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM t WHERE a = ? AND b = '?' AND c IN (?, ?)`
	assert.Equal(t, q, rebind(SQLite, q))
	assert.Equal(t, `SELECT id FROM t WHERE a = $1 AND b = '?' AND c IN ($2, $3)`, rebind(Postgres, q))
	assert.Equal(t, `SELECT 1`, rebind(Postgres, `SELECT 1`))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", sqliteDSN("file:x.db?mode=rwc"))
}

func TestPostgresErrorClassification(t *testing.T) {
	assert.True(t, isRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, isRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, isRetryable(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isCheckViolation(&pq.Error{Code: "23514"}))
	assert.True(t, isForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", (&Store{Dialect: Postgres}).ForUpdate())
	assert.Equal(t, "", (&Store{Dialect: SQLite}).ForUpdate())
}

type countResult struct {
	n   int64
	err error
}

func (r countResult) LastInsertId() (int64, error) { return 0, nil }
func (r countResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestRowsAffected(t *testing.T) {
	n, err := rowsAffected(countResult{n: 3}, "failing stale payments")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	errDriver := errors.New("driver does not report affected rows")
	n, err = rowsAffected(countResult{n: 7, err: errDriver}, "failing stale payments")
	assert.ErrorIs(t, err, errDriver)
	assert.Contains(t, err.Error(), "failing stale payments")
	assert.Zero(t, n)
}
