package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": SQLite, "sqlite3": SQLite, "Postgres": Postgres, "pgx": Postgres} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "select * from t where a = ? and b = ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "select * from t where a = $1 and b = $2", Postgres.Rebind(q))
}

func TestApplyDDL_SkipsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table b").WillReturnError(&pgconn.PgError{Code: "42P07", Message: "relation b already exists"})
	mock.ExpectExec("create index c").WillReturnError(errors.New("index c already exists"))
	mock.ExpectExec("create table d").WillReturnError(errors.New("syntax error"))

	err = ApplyDDL(context.Background(), db, zap.NewNop(), []string{
		"create table a (x int)", "  ", "create table b (x int)", "create index c on a(x)", "create table d (",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DDL apply failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsUniqueViolation(errors.New("unique")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestOpen_SQLiteMemory(t *testing.T) {
	conn, err := Open(SQLite, "")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ApplyDDL(context.Background(), conn, zap.NewNop(), Schema()))
	// idempotent
	require.NoError(t, ApplyDDL(context.Background(), conn, zap.NewNop(), Schema()))
}
