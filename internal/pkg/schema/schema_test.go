package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexspringer/sparkify-s3/entity"
)

func TestSongValidator(t *testing.T) {
	v, err := NewSongValidator()
	require.NoError(t, err)

	// A fully populated record and one with explicit nulls both pass; null
	// handling belongs to the builders' null-filters, not validation.
	valid := []string{
		`{"song_id": "SOX1", "title": "Title A", "artist_id": "ARX1", "year": 2000, "duration": 215.5, "artist_name": "Artist X", "artist_location": "NYC", "artist_latitude": 40.7, "artist_longitude": -74.0}`,
		`{"song_id": null, "title": null, "artist_id": "ARX1", "year": null, "duration": null, "artist_name": null, "artist_location": null, "artist_latitude": null, "artist_longitude": null}`,
	}
	for _, data := range valid {
		assert.NoError(t, v.Validate(entity.Record{Data: []byte(data)}))
	}

	// A record lacking an expected field entirely is a schema violation.
	missingKey := `{"title": "No song_id at all", "artist_id": "ARX1", "year": 2000, "duration": 215.5, "artist_name": "X", "artist_location": null, "artist_latitude": null, "artist_longitude": null}`
	assert.ErrorIs(t, v.Validate(entity.Record{Data: []byte(missingKey)}), entity.ErrSchemaViolation)

	// So is a field with an incompatible type.
	wrongType := `{"song_id": 123, "title": "T", "artist_id": "ARX1", "year": 2000, "duration": 215.5, "artist_name": "X", "artist_location": null, "artist_latitude": null, "artist_longitude": null}`
	assert.ErrorIs(t, v.Validate(entity.Record{Data: []byte(wrongType)}), entity.ErrSchemaViolation)
}

func TestEventValidator(t *testing.T) {
	v, err := NewEventValidator()
	require.NoError(t, err)

	valid := `{"userId": "39", "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": 1541440000000, "page": "NextSong", "song": "Title A", "artist": "Artist X", "sessionId": 38, "location": "SF", "userAgent": "Mozilla/5.0"}`
	assert.NoError(t, v.Validate(entity.Record{Data: []byte(valid)}))

	// userId may be a string, an integer or null, matching the raw logs.
	numericUser := `{"userId": 39, "firstName": "Walter", "lastName": "Frye", "gender": "M", "level": "free", "ts": 1, "page": "Home", "song": null, "artist": null, "sessionId": 1, "location": null, "userAgent": null}`
	assert.NoError(t, v.Validate(entity.Record{Data: []byte(numericUser)}))

	// ts must be present and integral; a string ts aborts the run.
	badTs := `{"userId": "39", "firstName": "W", "lastName": "F", "gender": "M", "level": "free", "ts": "1541440000000", "page": "NextSong", "song": null, "artist": null, "sessionId": 1, "location": null, "userAgent": null}`
	assert.ErrorIs(t, v.Validate(entity.Record{Data: []byte(badTs)}), entity.ErrSchemaViolation)

	missingPage := `{"userId": "39", "firstName": "W", "lastName": "F", "gender": "M", "level": "free", "ts": 1, "song": null, "artist": null, "sessionId": 1, "location": null, "userAgent": null}`
	assert.ErrorIs(t, v.Validate(entity.Record{Data: []byte(missingPage)}), entity.ErrSchemaViolation)
}

func TestTableDefinitions(t *testing.T) {
	assert.Equal(t, []string{"year", "artist_id"}, Songs().PartitionColumns())
	assert.Equal(t, []string{"location"}, Artists().PartitionColumns())
	assert.Equal(t, []string{"gender"}, Users().PartitionColumns())
	assert.Equal(t, []string{"year", "month"}, Time().PartitionColumns())
	assert.Equal(t, []string{"year", "month"}, Songplays(false).PartitionColumns())

	// Enrichment adds columns without touching partitioning.
	enriched := Songplays(true)
	assert.Equal(t, []string{"year", "month"}, enriched.PartitionColumns())
	assert.Len(t, enriched.Fields, len(Songplays(false).Fields)+3)
}

func TestWriterSchema(t *testing.T) {
	songs := Songs()
	s := WriterSchema(songs, songs.PartitionColumns())

	assert.Contains(t, s, "name=parquet_go_root")
	assert.Contains(t, s, "name=song_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED")
	assert.Contains(t, s, "name=duration, type=DOUBLE, repetitiontype=OPTIONAL")

	// Partition columns live in the partition path, not the part files.
	assert.NotContains(t, s, "name=year")
	assert.NotContains(t, s, "name=artist_id")

	timeDim := Time()
	s = WriterSchema(timeDim, timeDim.PartitionColumns())
	assert.Contains(t, s, "name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=REQUIRED")
}
