package assistant

import (
	"fmt"
	"strings"

	"github.com/finsight/finsight/internal/database"
)

// formatResultSet renders query results as a plain-text table for the
// synthesis context. The executed SQL is included so the model can explain
// what was measured.
func formatResultSet(sql string, result *database.ResultSet) string {
	if result == nil || len(result.Rows) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Database query: %s\n\n", sql)
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	for _, row := range result.Rows {
		values := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			values[i] = formatValue(row[col])
		}
		b.WriteString(strings.Join(values, " | "))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n(%d rows)", len(result.Rows))
	return b.String()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
