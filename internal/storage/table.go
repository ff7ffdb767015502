package storage

import "splitread/pkg/records"

// RecordColumns is the column order of rows built by RecordRow.
var RecordColumns = []string{"run_id", "path", "split_start", "record_offset", "value"}

// ColumnDef describes one column. Type is a logical kind ("text", "bigint")
// that backends map to their own SQL types.
type ColumnDef struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// TableDef is a table name plus its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// RecordTable describes the record table. A record is identified by its run,
// file and offset; split_start is kept for diagnostics.
func RecordTable(fqn string) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "run_id", Type: "text", PrimaryKey: true},
			{Name: "path", Type: "text", PrimaryKey: true},
			{Name: "split_start", Type: "bigint"},
			{Name: "record_offset", Type: "bigint", PrimaryKey: true},
			{Name: "value", Type: "text"},
		},
	}
}

// RecordRow builds a row aligned with RecordColumns.
func RecordRow(runID string, split records.Split, r records.Record) []any {
	return []any{runID, split.Path, split.Start, r.Offset, r.Value}
}
