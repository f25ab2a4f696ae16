package database

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLite(t *testing.T) {
	storeSuite(t, func(t *testing.T) Database {
		opts := &Options{URL: fmt.Sprintf("sqlite://%s", filepath.Join(t.TempDir(), "jobs.db"))}
		assert.Nil(t, Migrate(opts))

		db, err := NewSQLite(opts)
		assert.Nil(t, err)

		t.Cleanup(func() { db.Close() })
		return db
	})
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?"+sqliteParams, sqliteDSN("/tmp/a.db"))
	assert.Equal(t, "/tmp/a.db?cache=shared&"+sqliteParams, sqliteDSN("/tmp/a.db?cache=shared"))
}

func TestMigrateMemory(t *testing.T) {
	assert.Nil(t, Migrate(&Options{URL: "memory://"}))
}

func TestMigrateUnknown(t *testing.T) {
	assert.NotNil(t, Migrate(&Options{URL: "mysql://localhost"}))
}
