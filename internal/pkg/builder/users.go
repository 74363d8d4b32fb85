package builder

import (
	"context"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
)

var userColumns = []columnSpec{
	{Source: "userId", Target: "user_id", Kind: kindString},
	{Source: "firstName", Target: "first_name", Kind: kindString},
	{Source: "lastName", Target: "last_name", Kind: kindString},
	{Source: "gender", Target: "gender", Kind: kindString},
	{Source: "level", Target: "level", Kind: kindString},
}

// UserBuilder produces the user dimension from NextSong-filtered event
// records. Because dedup is on the full row, a user whose level flips
// between free and paid yields one row per level value, i.e. a duplicate
// user_id; the reject policy turns that into an error instead.
type UserBuilder struct {
	partitions int
	onConflict KeyConflictPolicy
	metrics    entity.Metrics
}

func NewUserBuilder(partitions int, onConflict KeyConflictPolicy) *UserBuilder {
	if partitions <= 0 {
		partitions = defaultPartitions
	}
	return &UserBuilder{partitions: partitions, onConflict: onConflict}
}

// Build expects records already filtered with PlayEvents.
func (b *UserBuilder) Build(ctx context.Context, plays []entity.Record) (entity.Table, error) {
	t := schema.Users()

	rows, dropped, err := projectRecords(ctx, plays, b.partitions, func(r entity.Record) (entity.Row, bool) {
		if isNull(r, "userId") || isNull(r, "firstName") {
			return nil, false
		}
		row := make(entity.Row, len(userColumns))
		for _, col := range userColumns {
			row[col.Target] = columnValue(r, col)
		}
		return row, true
	})
	if err != nil {
		return t, err
	}

	deduped := deduplicate(rows, columnNames(t))
	if b.onConflict == KeyConflictReject {
		if err = checkKeyUniqueness(deduped, "user_id", t.Name); err != nil {
			return t, err
		}
	}

	b.metrics = entity.Metrics{
		RecordsRead: int64(len(plays)),
		RowsDropped: dropped,
		RowsDeduped: int64(len(rows) - len(deduped)),
		RowsWritten: int64(len(deduped)),
	}
	t.Rows = deduped
	return t, nil
}

func (b *UserBuilder) Metrics() entity.Metrics {
	return b.metrics
}
