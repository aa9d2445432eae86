package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err := conn.ExecContext(ctx, "INSERT INTO competitors (id, name) VALUES ($1,$2)", []driver.NamedValue{
		{Value: "comp-1"},
		{Value: "Asha"},
	})
	if err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}
	if len(conn.Tables["competitors"]) != 1 {
		t.Fatalf("expected competitor row to be stored, got %v", conn.Tables["competitors"])
	}

	if _, err := conn.ExecContext(ctx, "TRUNCATE TABLE competitors, events", nil); err != nil {
		t.Fatalf("ExecContext truncate: %v", err)
	}
	if len(conn.Tables["competitors"]) != 0 {
		t.Fatalf("expected truncate to clear tables, got %v", conn.Tables["competitors"])
	}

	conn.Tables["competitors"] = []map[string]any{{"id": "comp-2", "name": "Brook"}}
	rows, err := conn.QueryContext(ctx, "select id, name from competitors", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "comp-2" || dest[1] != "Brook" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBFailureModes(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	conn.FailTables = map[string]bool{"events": true}
	if _, err := conn.ExecContext(ctx, "INSERT INTO events (id) VALUES ($1)", []driver.NamedValue{{Value: "e1"}}); err == nil {
		t.Fatalf("expected exec failure for events table")
	}
	if _, err := conn.QueryContext(ctx, "select id from events", nil); err == nil {
		t.Fatalf("expected query failure for events table")
	}

	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	conn.FailCommit = true
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}

	conn.FailExec = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
}
