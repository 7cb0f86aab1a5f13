package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"
)

func TestRun(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	version, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff(int64(2), version); diff != "" {
		t.Errorf("schema version (-want +got):\n%s", diff)
	}

	// A second run is a no-op.
	version, err = Run(ctx, db)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(int64(2), version); diff != "" {
		t.Errorf("schema version after rerun (-want +got):\n%s", diff)
	}

	for _, table := range []string{"feeds", "filters", "blobs"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
