package migrate_test

import (
	"database/sql"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/pkg/migrate"
)

func openSQL(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestNewLoadsEmbeddedMigrationsInOrder(t *testing.T) {
	m, err := migrate.New(openSQL(t), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	versions := m.Versions()
	if len(versions) != 5 {
		t.Fatalf("expected 5 embedded migrations, got %d", len(versions))
	}
	if versions[0] != 20260301090000 {
		t.Fatalf("expected enums migration first, got %d", versions[0])
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("versions out of order: %v", versions)
		}
	}
}

func TestNewFromDirMatchesEmbedded(t *testing.T) {
	sqlDB := openSQL(t)
	embedded, err := migrate.New(sqlDB, "")
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	onDisk, err := migrate.New(sqlDB, "migrations")
	if err != nil {
		t.Fatalf("on disk: %v", err)
	}
	if len(embedded.Versions()) != len(onDisk.Versions()) {
		t.Fatalf("embedded %v differs from disk %v", embedded.Versions(), onDisk.Versions())
	}
}

func TestNewRejectsMissingInputs(t *testing.T) {
	if _, err := migrate.New(nil, ""); err == nil {
		t.Fatal("expected error without db")
	}
	_, err := migrate.New(openSQL(t), "does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "migrations dir") {
		t.Fatalf("expected missing dir error, got %v", err)
	}
}
