package db

import (
	"path/filepath"
	"testing"
)

func TestConnectSQLite(t *testing.T) {
	database, err := ConnectSQLite(filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = database.Close() }()
	if database.Driver != "sqlite" {
		t.Fatalf("unexpected driver %s", database.Driver)
	}
	if err := database.DB.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("query: %v", err)
	}
}

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	if _, err := ConnectSQLite(""); err == nil {
		t.Fatalf("expected missing path error")
	}
}

func TestCloseNilDatabase(t *testing.T) {
	var database *Database
	if err := database.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
