package entity

import "errors"

var (
	// ErrSchemaViolation means a raw record lacked an expected field entirely,
	// or a field held an incompatible type. This is fatal and aborts the run;
	// it is distinct from a field holding an explicit null, which only drops
	// the affected row.
	ErrSchemaViolation = errors.New("source record violates its schema")

	// ErrKeyConflict is returned when the key-conflict policy is set to
	// reject and two deduplicated rows share a primary key but differ in
	// non-key fields.
	ErrKeyConflict = errors.New("primary key conflict in dimension table")
)

// Metrics per output table, provided by the pipeline and accessible with
// sparkify.Metrics(). Row-level omissions stay silent at the error level;
// these counters are the only place they surface.
type Metrics struct {

	// Number of raw records read for this table's build.
	RecordsRead int64

	// Rows removed by the null-filter on required fields.
	RowsDropped int64

	// Rows collapsed by full-row deduplication.
	RowsDeduped int64

	// Rows handed to the output writer.
	RowsWritten int64
}
