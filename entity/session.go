package entity

import "context"

// Session is the compute/session collaborator the pipeline core runs
// against. It owns storage access and the columnar codec; the core does not
// manage its construction, credentials or teardown.
//
// All three operations are the pipeline's only suspension points: reads and
// writes happen at stage boundaries, never inside transformation logic.
type Session interface {

	// ReadRecords streams every record found under path (a local directory
	// or an s3:// prefix) to process, in no guaranteed order. Files may be
	// line-delimited JSON or hold a single JSON object.
	ReadRecords(ctx context.Context, path string, process ProcessRecordFunc) error

	// WritePartitioned materializes the table under the session's output
	// root, split into hive-style partition directories on partitionBy.
	// Only WriteModeOverwrite is supported.
	WritePartitioned(ctx context.Context, table Table, partitionBy []string, mode WriteMode) error

	// ReadTable reads back a table previously written with WritePartitioned.
	// Partition column values are recovered from the partition paths and
	// converted per the table's field types.
	ReadTable(ctx context.Context, table Table, partitionBy []string) ([]Row, error)
}
