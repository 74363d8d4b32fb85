package builder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexspringer/sparkify-s3/entity"
)

// The songs dimension as it comes back from its materialized output, with
// the partition columns (year, artist_id) restored from the partition path.
var songDimension = []entity.Row{
	{"song_id": "SOX1", "title": "Title A", "duration": 215.5, "year": int32(2000), "artist_id": "ARX1"},
	{"song_id": "SOX2", "title": "Title B", "duration": 180.25, "year": int32(0), "artist_id": "ARX1"},
}

const userAgentChrome = `"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/36.0.1985.143 Safari/537.36"`

func playRecord(song, ts string) entity.Record {
	return record(`{"userId": "39", "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": ` + ts + `, "page": "NextSong", "song": ` + song + `, "artist": "Artist X", "sessionId": 38, "location": "San Francisco-Oakland-Hayward, CA", "userAgent": ` + userAgentChrome + `}`)
}

func TestSongplayBuilderJoin(t *testing.T) {
	plays := []entity.Record{
		playRecord(`"Title A"`, "1541440000000"),
		playRecord(`"Unknown Title"`, "1541440000000"),
		playRecord(`null`, "1541441000000"),
	}

	b := NewSongplayBuilder(1, false)
	table, err := b.Build(context.Background(), plays, songDimension)
	require.NoError(t, err)

	assert.Equal(t, "songplays", table.Name)
	assert.Equal(t, []string{"year", "month"}, table.PartitionColumns())

	// A join miss never drops the event row.
	require.Len(t, table.Rows, len(plays))

	matched := table.Rows[0]
	assert.Equal(t, "SOX1", matched["song_id"])
	assert.Equal(t, "ARX1", matched["artist_id"])
	assert.Equal(t, int64(1541440000000), matched["start_time"])
	assert.Equal(t, int32(2018), matched["year"])
	assert.Equal(t, int32(11), matched["month"])
	assert.Equal(t, "39", matched["user_id"])
	assert.Equal(t, "free", matched["level"])
	assert.Equal(t, int64(38), matched["session_id"])

	for _, unmatched := range table.Rows[1:] {
		assert.Nil(t, unmatched["song_id"])
		assert.Nil(t, unmatched["artist_id"])
	}
}

// The join key is the title string, case-sensitive: a case mismatch is a
// join miss, not an error.
func TestSongplayBuilderCaseSensitiveJoin(t *testing.T) {
	plays := []entity.Record{playRecord(`"title a"`, "1541440000000")}

	b := NewSongplayBuilder(1, false)
	table, err := b.Build(context.Background(), plays, songDimension)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0]["song_id"])
}

func TestSongplayBuilderSurrogateIds(t *testing.T) {
	var plays []entity.Record
	for i := 0; i < 100; i++ {
		plays = append(plays, playRecord(`"Title A"`, fmt.Sprintf("%d", 1541440000000+int64(i)*1000)))
	}

	b := NewSongplayBuilder(7, false)
	table, err := b.Build(context.Background(), plays, songDimension)
	require.NoError(t, err)
	require.Len(t, table.Rows, 100)

	seen := make(map[int64]bool)
	for _, row := range table.Rows {
		id, ok := row["songplay_id"].(int64)
		require.True(t, ok)
		assert.False(t, seen[id], "songplay_id %d assigned twice", id)
		seen[id] = true
	}
}

func TestSongplayBuilderUserAgentEnrichment(t *testing.T) {
	plays := []entity.Record{playRecord(`"Title A"`, "1541440000000")}

	b := NewSongplayBuilder(1, true)
	table, err := b.Build(context.Background(), plays, songDimension)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.Equal(t, "Chrome", row["ua_browser"])
	assert.NotNil(t, row["ua_platform"])
	assert.NotNil(t, row["ua_os"])

	// The enrichment columns are part of the table definition only when
	// enabled.
	names := columnNames(table)
	assert.Contains(t, names, "ua_browser")

	b = NewSongplayBuilder(1, false)
	table, err = b.Build(context.Background(), plays, songDimension)
	require.NoError(t, err)
	assert.NotContains(t, columnNames(table), "ua_browser")
	assert.NotContains(t, table.Rows[0], "ua_browser")
}
