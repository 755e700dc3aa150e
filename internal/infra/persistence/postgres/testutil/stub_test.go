package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

func TestStubUpsertsByFirstColumn(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	upsert := "INSERT INTO catalog(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{"[]", `[{"id":"atlas"}]`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "definitions"}, {Value: payload}}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "prefabs"}, {Value: "[]"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := len(conn.Tables["catalog"]); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM catalog", nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("next: %v", err)
	}
	if dest[0] != "definitions" || dest[1] != `[{"id":"atlas"}]` {
		t.Fatalf("upsert did not replace the row: %v", dest)
	}
	_ = rows.Next(dest)
	if err := rows.Next(dest); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestStubFailures(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(ctx, "DELETE FROM catalog", nil); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO catalog(bucket) VALUES($1,$2)", []driver.NamedValue{{Value: "a"}, {Value: "b"}}); err == nil {
		t.Fatalf("expected column mismatch error")
	}
	conn.FailTables = map[string]bool{"catalog": true}
	if _, err := conn.QueryContext(ctx, "SELECT bucket FROM catalog", nil); err == nil {
		t.Fatalf("expected table failure")
	}
	conn.FailExec = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
}
