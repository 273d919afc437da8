package database

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	t.Run("creates every table and index", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		for _, stmt := range schema {
			mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
		}

		err = CreateSchema(sqlx.NewDb(db, "postgres"))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_records").
			WillReturnError(errors.New("permission denied"))

		err = CreateSchema(sqlx.NewDb(db, "postgres"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create schema")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reward entries are unique per source", func(t *testing.T) {
		var found bool
		for _, stmt := range schema {
			if regexp.MustCompile(`UNIQUE INDEX .* ledger_entries\(source_ref\) WHERE kind = 'reward'`).MatchString(stmt) {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestGetConfig_DSN(t *testing.T) {
	cfg := &DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}
