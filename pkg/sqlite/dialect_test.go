package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/asaidimu/dataaccess/pkg/core"
)

func TestRoutineRendersFunctionCall(t *testing.T) {
	query, args := Dialect{}.Routine("sp_add", []core.Param{core.P("@a", 1), core.P("@b", 2)})
	if query != "SELECT sp_add(?, ?)" {
		t.Errorf("query = %q", query)
	}
	if len(args) != 2 || args[0] != 1 || args[1] != 2 {
		t.Errorf("args = %v", args)
	}

	query, _ = Dialect{}.Routine("sp_now", nil)
	if query != "SELECT sp_now()" {
		t.Errorf("query = %q", query)
	}
}

func TestPaginate(t *testing.T) {
	got := Dialect{}.Paginate("SELECT id FROM items ORDER BY id ;\n", 20, 10)
	want := "SELECT id FROM items ORDER BY id LIMIT 10 OFFSET 20"
	if got != want {
		t.Errorf("Paginate() = %q, want %q", got, want)
	}
}

func TestIsTransient(t *testing.T) {
	d := Dialect{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"cannot open", sqlite3.Error{Code: sqlite3.ErrCantOpen}, true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"other error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	d := Dialect{}
	dsn, err := d.BuildDSN(core.ConnectionConfig{
		Database: "/var/lib/app/data.db",
		Timeout:  5 * time.Second,
		Params:   map[string]string{"_journal_mode": "WAL", "_foreign_keys": "on"},
	})
	if err != nil {
		t.Fatalf("BuildDSN failed: %v", err)
	}
	want := "file:/var/lib/app/data.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	if dsn != want {
		t.Errorf("dsn = %q, want %q", dsn, want)
	}
	if got := d.DataSource(dsn); got != "/var/lib/app/data.db" {
		t.Errorf("DataSource() = %q", got)
	}

	if _, err := d.BuildDSN(core.ConnectionConfig{}); !errors.Is(err, core.ErrMissingDatabase) {
		t.Errorf("expected ErrMissingDatabase, got %v", err)
	}
}

func TestBulkLoadInsertsInTransaction(t *testing.T) {
	db, err := sql.Open(DriverName, "file:TestBulkLoadInsertsInTransaction?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE "order lines" (id INTEGER, sku TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	n, err := Dialect{}.BulkLoad(ctx, tx, "order lines", core.Table{
		Columns: []string{"id", "sku"},
		Rows:    [][]any{{1, "A-1"}, {2, "B-2"}},
	})
	if err != nil {
		tx.Rollback()
		t.Fatalf("BulkLoad failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if n != 2 {
		t.Errorf("copied = %d, want 2", n)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "order lines"`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestRegisterDriverExposesRoutines(t *testing.T) {
	const name = "sqlite3_routines_test"
	if err := RegisterDriver(name, map[string]any{
		"fn_double": func(v int64) int64 { return v * 2 },
	}); err != nil {
		t.Fatalf("RegisterDriver failed: %v", err)
	}
	if err := RegisterDriver(name, nil); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	db, err := sql.Open(name, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var got int64
	if err := db.QueryRow("SELECT fn_double(21)").Scan(&got); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got != 42 {
		t.Errorf("fn_double(21) = %d, want 42", got)
	}
}
