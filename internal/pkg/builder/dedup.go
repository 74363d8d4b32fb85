package builder

import (
	"fmt"
	"strings"

	"github.com/jalexspringer/sparkify-s3/entity"
)

// deduplicate collapses rows whose values are identical across all listed
// columns, keeping the first occurrence in input order. Equality is on the
// full projected row, not the primary key: two rows sharing a key but
// differing in any other column both survive. deduplicate is idempotent.
func deduplicate(rows []entity.Row, columns []string) []entity.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]entity.Row, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row, columns)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// checkKeyUniqueness returns entity.ErrKeyConflict if two deduplicated rows
// share the same primary key. Only invoked under the reject policy.
func checkKeyUniqueness(rows []entity.Row, primaryKey, table string) error {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		key := rowKey(row, []string{primaryKey})
		if seen[key] {
			return fmt.Errorf("%w: table %s, %s=%v",
				entity.ErrKeyConflict, table, primaryKey, row[primaryKey])
		}
		seen[key] = true
	}
	return nil
}

// rowKey builds a canonical encoding of the row's values over the given
// columns. Type is part of the encoding so 1 (int) and "1" never collide.
func rowKey(row entity.Row, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		v := row[col]
		if v == nil {
			b.WriteString("<null>")
		} else {
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte('\x00')
	}
	return b.String()
}
