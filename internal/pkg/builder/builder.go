// Package builder holds the transformation logic producing the four
// dimension tables and the songplay fact table from raw source records.
// Each builder is a pure, order-independent projection over its input; the
// only cross-partition coordination in the whole package is the surrogate-id
// scheme in the songplay builder.
package builder

import (
	"context"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/jalexspringer/sparkify-s3/entity"
)

// PageNextSong marks an event record as an actual play. Events with any
// other page value never reach the user/time dimensions or the fact table.
const PageNextSong = "NextSong"

const defaultPartitions = 4

// KeyConflictPolicy decides what happens when full-row deduplication leaves
// two rows sharing a primary key with differing non-key fields (e.g. a
// user's level changing between events).
type KeyConflictPolicy string

const (
	// KeyConflictKeep lets both rows survive. This is the documented
	// default, a known integrity gap of the source dataset.
	KeyConflictKeep KeyConflictPolicy = "keep"

	// KeyConflictReject aborts the build with entity.ErrKeyConflict.
	KeyConflictReject KeyConflictPolicy = "reject"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt32
	kindInt64
	kindFloat
)

// columnSpec maps one raw source field to an output column.
type columnSpec struct {
	Source string
	Target string
	Kind   valueKind
}

// columnValue extracts a typed column value from a raw record. An absent
// key and an explicit null both yield nil; the absent-key case is already
// fatal at validation time, so here it only matters for the null-filters.
func columnValue(record entity.Record, col columnSpec) any {
	result := record.Get(col.Source)
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	switch col.Kind {
	case kindInt32:
		return int32(result.Int())
	case kindInt64:
		return result.Int()
	case kindFloat:
		return result.Float()
	default:
		return result.String()
	}
}

// isNull reports whether a required raw field is missing or null.
func isNull(record entity.Record, field string) bool {
	result := record.Get(field)
	return !result.Exists() || result.Type == gjson.Null
}

// PlayEvents filters event records down to actual plays.
func PlayEvents(records []entity.Record) []entity.Record {
	var plays []entity.Record
	for _, r := range records {
		if r.Get("page").String() == PageNextSong {
			plays = append(plays, r)
		}
	}
	return plays
}

// chunkRecords splits records into at most n roughly equal, contiguous
// partitions for concurrent evaluation.
func chunkRecords(records []entity.Record, n int) [][]entity.Record {
	if n <= 0 {
		n = 1
	}
	if n > len(records) {
		n = len(records)
	}
	if n == 0 {
		return nil
	}
	size := (len(records) + n - 1) / n
	chunks := make([][]entity.Record, 0, n)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// projectRecords runs a pure per-record projection across partitions
// concurrently and concatenates the results in partition order. Records for
// which project returns false are dropped; the count of drops is returned.
func projectRecords(
	ctx context.Context,
	records []entity.Record,
	partitions int,
	project func(entity.Record) (entity.Row, bool)) ([]entity.Row, int64, error) {

	chunks := chunkRecords(records, partitions)
	results := make([][]entity.Row, len(chunks))
	droppedPerChunk := make([]int64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			rows := make([]entity.Row, 0, len(chunk))
			for _, record := range chunk {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				row, keep := project(record)
				if !keep {
					droppedPerChunk[i]++
					continue
				}
				rows = append(rows, row)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var rows []entity.Row
	var dropped int64
	for i := range results {
		rows = append(rows, results[i]...)
		dropped += droppedPerChunk[i]
	}
	return rows, dropped, nil
}

func columnNames(t entity.Table) []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}
