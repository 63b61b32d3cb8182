package postgres

import (
	"fmt"
	"strings"

	"github.com/dunesync/dunesync/pkg/frame"
)

// PostgreSQL caps bind parameters per statement at 65535; stay under it with
// headroom.
const maxStatementParams = 60000

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualifiedTable returns the quoted schema-qualified table name.
func (d *Destination) qualifiedTable() string {
	return quoteIdent(d.schemaName) + "." + quoteIdent(d.tableName)
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS from the frame's column
// order and types.
func (d *Destination) createTableSQL(f *frame.Frame) string {
	defs := make([]string, 0, len(f.Columns()))
	for _, name := range f.Columns() {
		t, _ := f.Type(name)
		defs = append(defs, quoteIdent(name)+" "+t.PostgresType())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.qualifiedTable(), strings.Join(defs, ", "))
}

// insertSQL renders a multi-row INSERT with the policy's ON CONFLICT clause
// and returns it with its flattened argument list.
func (d *Destination) insertSQL(columns []string, rows [][]interface{}, action conflictAction) (string, []interface{}) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		d.qualifiedTable(), strings.Join(quoted, ", "))

	args := make([]interface{}, 0, len(rows)*len(columns))
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			args = append(args, row[c])
		}
		sb.WriteByte(')')
	}

	conflictCols := make([]string, len(d.indexColumns))
	for i, c := range d.indexColumns {
		conflictCols[i] = quoteIdent(c)
	}
	switch action {
	case onConflictUpdate:
		sets := make([]string, len(columns))
		for i, c := range quoted {
			sets[i] = c + " = EXCLUDED." + c
		}
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(conflictCols, ", "), strings.Join(sets, ", "))
	case onConflictNothing:
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", "))
	}

	return sb.String(), args
}

// maxRowsPerStatement returns how many rows fit into one statement given the
// parameter cap.
func maxRowsPerStatement(columns int) int {
	if columns <= 0 {
		return 1
	}
	n := maxStatementParams / columns
	if n < 1 {
		return 1
	}
	return n
}

// chunkRows splits rows into slices of at most size rows.
func chunkRows(rows [][]interface{}, size int) [][][]interface{} {
	var chunks [][][]interface{}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
