package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/pkg/database"

	"gorm.io/gorm"
)

// NewTestDB opens a file-backed SQLite database in a temp dir with all tables migrated.
// It automatically closes the database when the test completes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "mailsync.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	return db
}

// NewTestStore returns a Store over NewTestDB.
func NewTestStore(t *testing.T) repository.Store {
	t.Helper()
	return repository.NewStore(NewTestDB(t), 5*time.Second)
}
