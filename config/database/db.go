package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"compliancedocs/pkg/logger"

	_ "github.com/lib/pq"
)

func Connect() *sql.DB {
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Sugar.Fatalf("Failed to open database connection: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	logger.Sugar.Fatal("Could not connect to database after retries.")
	return nil
}

// Migrate creates the engine's tables. The unique constraint on
// (root_kind, root_id, category) carries the scaffolding idempotency; the
// version column carries the optimistic locking of folder status updates.
func Migrate(db *sql.DB) error {
	folderTable := `
    CREATE TABLE IF NOT EXISTS folders (
        id VARCHAR(64) PRIMARY KEY,
        root_kind VARCHAR(32) NOT NULL,
        root_id VARCHAR(64) NOT NULL,
        category VARCHAR(32) NOT NULL,
        status VARCHAR(16) NOT NULL,
        version BIGINT NOT NULL DEFAULT 1,
        submitted_at TIMESTAMPTZ,
        approved_at TIMESTAMPTZ,
        rejection_notes TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        UNIQUE (root_kind, root_id, category)
    );`

	documentTable := `
    CREATE TABLE IF NOT EXISTS documents (
        id VARCHAR(64) PRIMARY KEY,
        folder_id VARCHAR(64) NOT NULL REFERENCES folders(id),
        type VARCHAR(64) NOT NULL,
        name VARCHAR(255) NOT NULL,
        required BOOLEAN NOT NULL,
        position INTEGER NOT NULL DEFAULT 0,
        artifact_ref TEXT NOT NULL DEFAULT '',
        expiration_date TIMESTAMPTZ,
        status VARCHAR(16) NOT NULL,
        review_notes TEXT NOT NULL DEFAULT '',
        reviewed_by VARCHAR(64) NOT NULL DEFAULT '',
        reviewed_at TIMESTAMPTZ,
        UNIQUE (folder_id, type)
    );`

	auditTable := `
    CREATE TABLE IF NOT EXISTS audit_entries (
        id VARCHAR(64) PRIMARY KEY,
        document_id VARCHAR(64) NOT NULL REFERENCES documents(id),
        previous_artifact_ref TEXT NOT NULL DEFAULT '',
        previous_status VARCHAR(16) NOT NULL,
        decided_by VARCHAR(64) NOT NULL,
        decided_at TIMESTAMPTZ NOT NULL,
        notes TEXT NOT NULL DEFAULT ''
    );`

	for _, ddl := range []string{folderTable, documentTable, auditTable} {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}
