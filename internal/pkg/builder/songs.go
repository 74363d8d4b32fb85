package builder

import (
	"context"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
)

var songColumns = []columnSpec{
	{Source: "song_id", Target: "song_id", Kind: kindString},
	{Source: "title", Target: "title", Kind: kindString},
	{Source: "artist_id", Target: "artist_id", Kind: kindString},
	{Source: "year", Target: "year", Kind: kindInt32},
	{Source: "duration", Target: "duration", Kind: kindFloat},
}

// SongBuilder produces the song dimension from raw song/artist metadata
// records: null-filter on the song and artist keys, project, full-row dedup.
type SongBuilder struct {
	partitions int
	onConflict KeyConflictPolicy
	metrics    entity.Metrics
}

func NewSongBuilder(partitions int, onConflict KeyConflictPolicy) *SongBuilder {
	if partitions <= 0 {
		partitions = defaultPartitions
	}
	return &SongBuilder{partitions: partitions, onConflict: onConflict}
}

func (b *SongBuilder) Build(ctx context.Context, records []entity.Record) (entity.Table, error) {
	t := schema.Songs()

	rows, dropped, err := projectRecords(ctx, records, b.partitions, func(r entity.Record) (entity.Row, bool) {
		if isNull(r, "song_id") || isNull(r, "artist_id") {
			return nil, false
		}
		row := make(entity.Row, len(songColumns))
		for _, col := range songColumns {
			row[col.Target] = columnValue(r, col)
		}
		return row, true
	})
	if err != nil {
		return t, err
	}

	deduped := deduplicate(rows, columnNames(t))
	if b.onConflict == KeyConflictReject {
		if err = checkKeyUniqueness(deduped, "song_id", t.Name); err != nil {
			return t, err
		}
	}

	b.metrics = entity.Metrics{
		RecordsRead: int64(len(records)),
		RowsDropped: dropped,
		RowsDeduped: int64(len(rows) - len(deduped)),
		RowsWritten: int64(len(deduped)),
	}
	t.Rows = deduped
	return t, nil
}

func (b *SongBuilder) Metrics() entity.Metrics {
	return b.metrics
}
