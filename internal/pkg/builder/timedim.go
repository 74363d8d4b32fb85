package builder

import (
	"context"
	"time"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
)

// TimeBuilder derives the time dimension from the play events' timestamps:
// one row per distinct start_time, broken down into calendar parts.
type TimeBuilder struct {
	partitions int
	metrics    entity.Metrics
}

func NewTimeBuilder(partitions int) *TimeBuilder {
	if partitions <= 0 {
		partitions = defaultPartitions
	}
	return &TimeBuilder{partitions: partitions}
}

// Build expects records already filtered with PlayEvents.
func (b *TimeBuilder) Build(ctx context.Context, plays []entity.Record) (entity.Table, error) {
	t := schema.Time()

	rows, dropped, err := projectRecords(ctx, plays, b.partitions, func(r entity.Record) (entity.Row, bool) {
		if isNull(r, "ts") {
			return nil, false
		}
		return timeRow(StartTime(r.Get("ts").Int())), true
	})
	if err != nil {
		return t, err
	}

	// Every non-key column is a pure function of start_time, so dedup on the
	// full row equals dedup on distinct start_time values.
	deduped := deduplicate(rows, []string{"start_time"})

	b.metrics = entity.Metrics{
		RecordsRead: int64(len(plays)),
		RowsDropped: dropped,
		RowsDeduped: int64(len(rows) - len(deduped)),
		RowsWritten: int64(len(deduped)),
	}
	t.Rows = deduped
	return t, nil
}

func (b *TimeBuilder) Metrics() entity.Metrics {
	return b.metrics
}

// StartTime converts a raw event timestamp (epoch milliseconds) to the
// play's start time: epoch seconds resolution, UTC.
func StartTime(tsMillis int64) time.Time {
	return time.UnixMilli(tsMillis).UTC().Truncate(time.Second)
}

// timeRow decomposes a start time into its calendar parts.
//
// Weekday numbering follows the calendar convention of the source system:
// 1 = Sunday ... 7 = Saturday. Go's time.Weekday is 0 = Sunday, hence the
// +1 below; keep the two conventions straight when changing this.
func timeRow(start time.Time) entity.Row {
	_, week := start.ISOWeek()
	return entity.Row{
		"start_time": start.UnixMilli(),
		"hour":       int32(start.Hour()),
		"day":        int32(start.Day()),
		"week":       int32(week),
		"weekday":    int32(start.Weekday()) + 1,
		"year":       int32(start.Year()),
		"month":      int32(start.Month()),
	}
}
