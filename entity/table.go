package entity

// Row is one projected output row, keyed on output column name. A nil value
// means SQL-style null and is written as such to the columnar output.
type Row map[string]any

// Field describes one column of an output table, using parquet primitive
// type names. Partition columns are not stored inside the part files; their
// values live in the partition path and are restored on re-read.
type Field struct {
	Name          string
	Type          string // parquet physical type, e.g. "BYTE_ARRAY", "INT64"
	ConvertedType string // e.g. "UTF8", "TIMESTAMP_MILLIS"; empty if none
	Optional      bool
	Partition     bool
}

// Table is the unit handed to Session.WritePartitioned: a named set of rows
// together with the column definitions needed to lay them out as parquet.
type Table struct {
	Name   string
	Fields []Field
	Rows   []Row
}

// PartitionColumns returns the names of the table's partition columns, in
// field order.
func (t Table) PartitionColumns() []string {
	var cols []string
	for _, f := range t.Fields {
		if f.Partition {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// WriteMode selects how a table write treats existing output. The core
// contract only supports full overwrite; the type exists to keep the write
// primitive's signature explicit about it.
type WriteMode int

const (
	WriteModeInvalid WriteMode = iota

	// WriteModeOverwrite replaces the entire prior contents of the table's
	// output location. Other tables are never touched.
	WriteModeOverwrite
)
