package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openTestDB creates a file-backed database in a temp dir using driver.
func openTestDB(t *testing.T, driver string) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Driver:      driver,
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	for _, driver := range []string{DriverSQLite3, DriverSQLite} {
		t.Run(driver+" creates nested directory and file", func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "readings.db")

			db, err := Open(context.Background(), Config{Driver: driver, Path: dbPath, WALMode: true, BusyTimeout: 5})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer db.Close() //nolint:errcheck // Test cleanup

			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
			if db.Path() != dbPath {
				t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
			}
			if db.Driver() != driver {
				t.Errorf("Driver() = %q, want %q", db.Driver(), driver)
			}
		})
	}
}

func TestOpen_DefaultDriver(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if db.Driver() != DriverSQLite3 {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverSQLite3)
	}
}

func TestOpen_InMemoryKeepsState(t *testing.T) {
	for _, driver := range []string{DriverSQLite3, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			db, err := Open(ctx, Config{Driver: driver, Path: MemoryPath})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer db.Close() //nolint:errcheck // Test cleanup

			if _, err := db.ExecContext(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
				t.Fatalf("CREATE error = %v", err)
			}
			if _, err := db.ExecContext(ctx, "INSERT INTO t (v) VALUES (1)"); err != nil {
				t.Fatalf("INSERT error = %v", err)
			}

			var n int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n); err != nil {
				t.Fatalf("SELECT error = %v", err)
			}
			if n != 1 {
				t.Errorf("count = %d, want 1", n)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres", Path: MemoryPath})
	if err == nil {
		t.Fatal("Open() expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported database driver") {
		t.Errorf("error = %v, want unsupported driver", err)
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		cfg      Config
		contains []string
		excludes []string
	}{
		{
			name:     "mattn with WAL",
			driver:   DriverSQLite3,
			cfg:      Config{Path: "/data/r.db", WALMode: true, BusyTimeout: 5},
			contains: []string{"file:/data/r.db?", "_busy_timeout=5000", "_journal_mode=WAL"},
		},
		{
			name:     "modernc with WAL",
			driver:   DriverSQLite,
			cfg:      Config{Path: "/data/r.db", WALMode: true, BusyTimeout: 2},
			contains: []string{"_pragma=busy_timeout(2000)", "_pragma=journal_mode(WAL)"},
		},
		{
			name:     "memory never uses WAL",
			driver:   DriverSQLite3,
			cfg:      Config{Path: MemoryPath, WALMode: true},
			contains: []string{"file::memory:?"},
			excludes: []string{"WAL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildDSN(tt.driver, tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(dsn, s) {
					t.Errorf("dsn %q missing %q", dsn, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(dsn, s) {
					t.Errorf("dsn %q should not contain %q", dsn, s)
				}
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, DriverSQLite3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Closed(t *testing.T) {
	db := openTestDB(t, DriverSQLite)
	db.Close() //nolint:errcheck // closing on purpose

	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on closed database should fail")
	}
}

func TestClose_Nil(t *testing.T) {
	db := &DB{}
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestBeginTx(t *testing.T) {
	db := openTestDB(t, DriverSQLite3)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	t.Run("commit keeps row", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "committed"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test WHERE value = ?", "committed").Scan(&count); err != nil {
			t.Fatalf("SELECT error = %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}
	})

	t.Run("rollback discards row", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "rolled_back"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}

		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test WHERE value = ?", "rolled_back").Scan(&count); err != nil {
			t.Fatalf("SELECT error = %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 rows, got %d", count)
		}
	})
}

func TestStats_SingleConnection(t *testing.T) {
	db := openTestDB(t, DriverSQLite3)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
