package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"splitread/internal/storage"
	"splitread/pkg/records"
)

func openRecords(tb testing.TB) (storage.Repository, storage.Config) {
	tb.Helper()
	cfg := storage.Config{
		Kind:  "sqlite",
		DSN:   filepath.Join(tb.TempDir(), "out.db"),
		Table: "records",
	}
	repo, err := storage.New(context.Background(), cfg)
	if err != nil {
		tb.Fatalf("storage.New: %v", err)
	}
	tb.Cleanup(repo.Close)
	if err := storage.EnsureRecordTable(context.Background(), cfg, repo); err != nil {
		tb.Fatalf("EnsureRecordTable: %v", err)
	}
	return repo, cfg
}

func TestLoadRecords(t *testing.T) {
	t.Parallel()

	repo, _ := openRecords(t)
	ctx := context.Background()

	split := records.Split{Path: "plants.csv", Start: 0, Length: 100}
	in := make(chan []any, 16)
	for i := 0; i < 10; i++ {
		in <- storage.RecordRow("run-1", split, records.Record{Value: fmt.Sprintf("r%d", i), Offset: int64(i * 3)})
	}
	close(in)

	total, err := storage.LoadBatches(ctx, "test", storage.RecordColumns, in, 4, repo.CopyFrom)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}

	n, err := repo.(*wrappedRepo).Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 10 {
		t.Fatalf("rows in table = %d, want 10", n)
	}
}

func TestCopyFrom_DuplicateKeyRollsBack(t *testing.T) {
	t.Parallel()

	repo, _ := openRecords(t)
	ctx := context.Background()

	split := records.Split{Path: "a.xml"}
	row := storage.RecordRow("run", split, records.Record{Value: "<a/>", Offset: 7})
	n, err := repo.CopyFrom(ctx, storage.RecordColumns, [][]any{row, row})
	if err == nil {
		t.Fatal("duplicate key accepted")
	}
	if n != 1 {
		t.Fatalf("inserted before failure = %d, want 1", n)
	}
	if c, _ := repo.(*wrappedRepo).Count(ctx); c != 0 {
		t.Fatalf("rows after rollback = %d, want 0", c)
	}
}

func TestCopyFrom_RowShape(t *testing.T) {
	t.Parallel()

	repo, _ := openRecords(t)
	_, err := repo.CopyFrom(context.Background(), storage.RecordColumns, [][]any{{"too", "short"}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("err = %v, want row length error", err)
	}
	if _, err := repo.CopyFrom(context.Background(), nil, nil); err == nil {
		t.Fatal("empty columns accepted")
	}
}

func TestNewRepository_Validation(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{Table: "t"}); err == nil {
		t.Fatal("empty DSN accepted")
	}
	if _, _, err := NewRepository(context.Background(), Config{DSN: "x.db"}); err == nil {
		t.Fatal("empty table accepted")
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(storage.RecordTable("main.records"))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := `CREATE TABLE IF NOT EXISTS "main"."records" (
  "run_id" TEXT NOT NULL,
  "path" TEXT NOT NULL,
  "split_start" INTEGER NOT NULL,
  "record_offset" INTEGER NOT NULL,
  "value" TEXT NOT NULL,
  PRIMARY KEY ("run_id", "path", "record_offset")
);`
	if got != want {
		t.Fatalf("sql =\n%s\nwant\n%s", got, want)
	}
}

func BenchmarkCopyFrom(b *testing.B) {
	repo, _ := openRecords(b)
	ctx := context.Background()
	split := records.Split{Path: "bench.csv"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rows := make([][]any, 0, 256)
		for j := 0; j < 256; j++ {
			rows = append(rows, storage.RecordRow(fmt.Sprint(i), split, records.Record{Value: "1,2,3", Offset: int64(j)}))
		}
		if _, err := repo.CopyFrom(ctx, storage.RecordColumns, rows); err != nil {
			b.Fatal(err)
		}
	}
}
