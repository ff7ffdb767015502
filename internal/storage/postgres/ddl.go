package postgres

import (
	"fmt"
	"sort"
	"strings"

	"splitread/internal/storage"
)

// MapType maps a logical column kind to a Postgres type.
//
//	"int"/"integer"/"bigint" -> BIGINT
//	"bool"/"boolean"         -> BOOLEAN
//	"timestamp"              -> TIMESTAMPTZ
//	everything else          -> TEXT
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BOOLEAN"
	case "timestamp", "timestamptz":
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement.
// Primary-key columns are always NOT NULL and the key clause lists them
// sorted, so the output is deterministic.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("postgres ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("postgres ddl: column with empty name in table %s", fqn)
		}
		def := quoteIdent(name) + " " + MapType(c.Type)
		if !c.Nullable || c.PrimaryKey {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, quoteIdent(name))
		}
	}
	if len(pks) > 0 {
		sort.Strings(pks)
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// quoteIdent quotes a single identifier segment, doubling embedded quotes.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// quoteFQN quotes each segment of a possibly schema-qualified name.
func quoteFQN(f string) string {
	parts := splitFQN(f)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = quoteIdent(p)
	}
	return strings.Join(out, ".")
}
