package duckdb_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperz567/food-app-qa/internal/scanner/duckdb"
)

// seedOrdersDatabase creates a DuckDB file holding one orders table.
func seedOrdersDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.duckdb")

	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE orders (order_id BIGINT NOT NULL, delivery_address VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return path
}

// TestDuckDBScanner_ListColumns proves the scanner reads a real DuckDB
// file's schema: table, column order, types, and nullability.
//
// Green-Flag: System MUST report the store's actual columns, not the
// registry's expectations.
func TestDuckDBScanner_ListColumns(t *testing.T) {
	path := seedOrdersDatabase(t)

	s := duckdb.NewScanner(duckdb.Config{Service: "orderservice", DatabasePath: path})
	defer s.Close()

	if s.Name() != "duckdb" || s.Service() != "orderservice" {
		t.Errorf("Name/Service = %s/%s, want duckdb/orderservice", s.Name(), s.Service())
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	columns, err := s.ListColumns(context.Background())
	if err != nil {
		t.Fatalf("ListColumns failed: %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(columns))
	}

	first := columns[0]
	if first.Table != "orders" || first.Name != "order_id" {
		t.Errorf("first column = %s.%s, want orders.order_id (ordinal order)", first.Table, first.Name)
	}
	if first.Nullable {
		t.Error("order_id reported nullable despite NOT NULL")
	}
	if !strings.EqualFold(first.DataType, "BIGINT") {
		t.Errorf("order_id type = %q, want BIGINT", first.DataType)
	}

	second := columns[1]
	if second.Name != "delivery_address" || !second.Nullable {
		t.Errorf("second column = %+v, want nullable delivery_address", second)
	}
}

// TestDuckDBScanner_ClosedErrors proves a closed scanner fails loudly and
// Close stays idempotent.
//
// Red-Flag: System MUST NOT silently scan through a released handle.
func TestDuckDBScanner_ClosedErrors(t *testing.T) {
	s := duckdb.NewScanner(duckdb.Config{Service: "orderservice"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded on a closed scanner")
	}
	if _, err := s.ListColumns(context.Background()); err == nil {
		t.Error("ListColumns succeeded on a closed scanner")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
