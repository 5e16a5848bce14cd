package dbexec

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(context.Background(),
		"create table users (id integer primary key, name text, email text)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestBunExecutorQuery(t *testing.T) {
	db := openTestDB(t)
	e := New()
	ctx := context.Background()

	if _, err := e.Exec(ctx, db,
		"insert into users (id, name, email) values (?, ?, ?)",
		[]any{int64(1), "ann", "ann@example.com"}); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	rows, err := e.Query(ctx, db, "select id, name, email from users where id = ?", []any{int64(1)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []map[string]any{{"id": int64(1), "name": "ann", "email": "ann@example.com"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Query() = %#v, want %#v", rows, want)
	}

	rows, err = e.Query(ctx, db, "select id from users where id = ?", []any{int64(404)})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Query() on missing row = %v", rows)
	}
}

func TestBunExecutorExec(t *testing.T) {
	db := openTestDB(t)
	e := New()
	ctx := context.Background()

	n, err := e.Exec(ctx, db,
		"insert into users (id, name) values (?, ?)", []any{int64(1), "ann"})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}

	n, err = e.Exec(ctx, db, "update users set name = ? where id = ?", []any{"anne", int64(1)})
	if err != nil || n != 1 {
		t.Errorf("update affected = %d, err %v", n, err)
	}

	if _, err := e.Exec(ctx, db, "not valid sql", nil); err == nil {
		t.Error("Exec() accepted malformed SQL")
	}
}

func TestBunExecutorExecBatch(t *testing.T) {
	db := openTestDB(t)
	e := New()
	ctx := context.Background()

	counts, err := e.ExecBatch(ctx, db,
		"insert into users (id, name) values (?, ?)",
		[][]any{
			{int64(1), "ann"},
			{int64(2), "bob"},
			{int64(3), "cyd"},
		})
	if err != nil {
		t.Fatalf("ExecBatch() error = %v", err)
	}
	if !reflect.DeepEqual(counts, []int64{1, 1, 1}) {
		t.Errorf("counts = %v", counts)
	}

	// A duplicate key aborts the batch at its element.
	if _, err := e.ExecBatch(ctx, db,
		"insert into users (id, name) values (?, ?)",
		[][]any{{int64(4), "dee"}, {int64(1), "dup"}}); err == nil {
		t.Error("ExecBatch() swallowed a constraint violation")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"byte slice becomes string", []byte("ann"), "ann"},
		{"string passes through", "ann", "ann"},
		{"int64 passes through", int64(7), int64(7)},
		{"nil passes through", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(tt.in); got != tt.want {
				t.Errorf("normalize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
