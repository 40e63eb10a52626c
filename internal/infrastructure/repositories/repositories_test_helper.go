package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createCredentialTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE database_credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		connection_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		"database" TEXT NOT NULL,
		username TEXT NOT NULL,
		engine_type TEXT NOT NULL,
		encrypted_secret TEXT NOT NULL,
		encryption_salt TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		last_used DATETIME,
		owner_session TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1
	);`)
}

func createAuditTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE credential_audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		credential_id INTEGER,
		connection_hash TEXT,
		operation TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		owner_session TEXT,
		ip_address TEXT,
		user_agent TEXT,
		timestamp DATETIME,
		metadata_json TEXT
	);`)
}
