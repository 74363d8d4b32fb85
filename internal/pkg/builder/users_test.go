package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexspringer/sparkify-s3/entity"
)

var eventRecords = []entity.Record{
	record(`{"userId": "39", "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": 1541440000000, "page": "NextSong", "song": "Title A", "artist": "Artist X", "sessionId": 38, "location": "San Francisco-Oakland-Hayward, CA", "userAgent": "Mozilla/5.0"}`),
	record(`{"userId": "39", "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": 1541441000000, "page": "NextSong", "song": "Unknown Title", "artist": null, "sessionId": 38, "location": "San Francisco-Oakland-Hayward, CA", "userAgent": "Mozilla/5.0"}`),
	record(`{"userId": null, "firstName": null, "lastName": null, "gender": null, "level": "free", "ts": 1541442000000, "page": "NextSong", "song": "Title B", "artist": "Artist X", "sessionId": 40, "location": null, "userAgent": null}`),
	record(`{"userId": "8", "firstName": "Kaylee", "lastName": "Summers", "gender": "F", "level": "free", "ts": 1541443000000, "page": "Home", "song": null, "artist": null, "sessionId": 139, "location": "Phoenix-Mesa-Scottsdale, AZ", "userAgent": "Mozilla/5.0"}`),
}

func TestPlayEvents(t *testing.T) {
	plays := PlayEvents(eventRecords)
	// The Home page view is not a play and never reaches the user, time or
	// songplay outputs.
	require.Len(t, plays, 3)
	for _, r := range plays {
		assert.Equal(t, PageNextSong, r.Get("page").String())
	}
}

func TestUserBuilder(t *testing.T) {
	b := NewUserBuilder(2, KeyConflictKeep)
	table, err := b.Build(context.Background(), PlayEvents(eventRecords))
	require.NoError(t, err)

	assert.Equal(t, "users", table.Name)
	assert.Equal(t, []string{"gender"}, table.PartitionColumns())

	// Two plays by user 39 collapse to one row; the null-userId event is
	// excluded entirely.
	require.Len(t, table.Rows, 1)
	assert.Equal(t, entity.Row{
		"user_id":    "39",
		"first_name": "Walter",
		"last_name":  "Frye",
		"gender":     "M",
		"level":      "free",
	}, table.Rows[0])

	for _, row := range table.Rows {
		assert.NotNil(t, row["user_id"])
		assert.NotNil(t, row["first_name"])
	}

	m := b.Metrics()
	assert.Equal(t, int64(3), m.RecordsRead)
	assert.Equal(t, int64(1), m.RowsDropped)
	assert.Equal(t, int64(1), m.RowsDeduped)
	assert.Equal(t, int64(1), m.RowsWritten)
}

// A numeric userId projects to its string form, keeping the user_id column
// type uniform across sources.
func TestUserBuilderNumericUserId(t *testing.T) {
	records := []entity.Record{
		record(`{"userId": 39, "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": 1, "page": "NextSong", "song": null, "artist": null, "sessionId": 1, "location": null, "userAgent": null}`),
	}
	b := NewUserBuilder(1, KeyConflictKeep)
	table, err := b.Build(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "39", table.Rows[0]["user_id"])
}

// A user whose level flips between free and paid yields two rows with the
// same user_id under the keep policy, and an error under reject.
func TestUserBuilderLevelChange(t *testing.T) {
	records := []entity.Record{
		record(`{"userId": "80", "firstName": "Tegan", "lastName": "Levine", "gender": "F", "level": "free", "ts": 1, "page": "NextSong", "song": null, "artist": null, "sessionId": 1, "location": null, "userAgent": null}`),
		record(`{"userId": "80", "firstName": "Tegan", "lastName": "Levine", "gender": "F", "level": "paid", "ts": 2, "page": "NextSong", "song": null, "artist": null, "sessionId": 2, "location": null, "userAgent": null}`),
	}

	b := NewUserBuilder(1, KeyConflictKeep)
	table, err := b.Build(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)

	b = NewUserBuilder(1, KeyConflictReject)
	_, err = b.Build(context.Background(), records)
	assert.ErrorIs(t, err, entity.ErrKeyConflict)
}
