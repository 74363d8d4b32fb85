package sparkify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/session"
)

var songDataFiles = map[string]string{
	"A/A/A/TRAAAAW128F429D538.json": `{
		"song_id": "SOX1", "title": "Midnight Rain", "artist_id": "ARX1",
		"year": 2018, "duration": 215.5, "artist_name": "The Larks",
		"artist_location": "Oslo", "artist_latitude": 59.91, "artist_longitude": 10.75
	}`,
	"A/A/B/TRAABJL12903CDCF1A.json": `{
		"song_id": "SOX2", "title": "Solo Nine", "artist_id": "ARX2",
		"year": 0, "duration": 89.25, "artist_name": "Mira Voss",
		"artist_location": null, "artist_latitude": null, "artist_longitude": null
	}`,
}

var logDataFile = `{"userId":"39","firstName":"Walter","lastName":"Frye","gender":"M","level":"free","ts":1541440000123,"page":"NextSong","song":"Midnight Rain","artist":"The Larks","sessionId":38,"location":"San Francisco-Oakland-Hayward, CA","userAgent":"\"Mozilla/5.0\""}
{"userId":"39","firstName":"Walter","lastName":"Frye","gender":"M","level":"free","ts":1541440175000,"page":"NextSong","song":"Unknown Tune","artist":"Nobody","sessionId":38,"location":"San Francisco-Oakland-Hayward, CA","userAgent":"\"Mozilla/5.0\""}
{"userId":"39","firstName":"Walter","lastName":"Frye","gender":"M","level":"free","ts":1541440200000,"page":"Home","song":null,"artist":null,"sessionId":38,"location":"San Francisco-Oakland-Hayward, CA","userAgent":"\"Mozilla/5.0\""}
`

func newTestPipeline(t *testing.T) (*Pipeline, *session.Session, string) {
	t.Helper()

	input := t.TempDir()
	output := t.TempDir()
	for name, data := range songDataFiles {
		writeInputFile(t, filepath.Join(input, "song_data", name), data)
	}
	writeInputFile(t, filepath.Join(input, "log_data", "2018/11/2018-11-05-events.json"), logDataFile)

	sess, err := session.New(session.Config{
		OutputRoot: output,
		TempDir:    t.TempDir(),
		Parallel:   2,
	})
	require.NoError(t, err)

	cfg := NewConfig()
	cfg.Session = sess
	cfg.SongData = filepath.Join(input, "song_data")
	cfg.LogData = filepath.Join(input, "log_data")
	p, err := New(cfg)
	require.NoError(t, err)
	return p, sess, input
}

func writeInputFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func TestPipelineEndToEnd(t *testing.T) {
	p, sess, _ := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.Run(ctx))

	m := p.Metrics()
	assert.Equal(t, entity.Metrics{RecordsRead: 2, RowsWritten: 2}, m[schema.TableSongs])
	assert.Equal(t, entity.Metrics{RecordsRead: 2, RowsWritten: 2}, m[schema.TableArtists])
	assert.Equal(t, entity.Metrics{RecordsRead: 2, RowsDeduped: 1, RowsWritten: 1}, m[schema.TableUsers])
	assert.Equal(t, entity.Metrics{RecordsRead: 2, RowsWritten: 2}, m[schema.TableTime])
	assert.Equal(t, entity.Metrics{RecordsRead: 2, RowsWritten: 2}, m[schema.TableSongplays])

	table := schema.Songplays(false)
	rows, err := sess.ReadTable(ctx, table, table.PartitionColumns())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ids := make(map[any]bool)
	var matched, unmatched entity.Row
	for _, row := range rows {
		ids[row["songplay_id"]] = true
		assert.Equal(t, "39", row["user_id"])
		assert.Equal(t, "free", row["level"])
		assert.Equal(t, int32(2018), row["year"])
		assert.Equal(t, int32(11), row["month"])
		if row["song_id"] != nil {
			matched = row
		} else {
			unmatched = row
		}
	}
	assert.Len(t, ids, 2)

	require.NotNil(t, matched)
	assert.Equal(t, "SOX1", matched["song_id"])
	assert.Equal(t, "ARX1", matched["artist_id"])
	assert.Equal(t, int64(1541440000000), matched["start_time"])

	require.NotNil(t, unmatched)
	assert.Nil(t, unmatched["artist_id"])
	assert.Equal(t, int64(1541440175000), unmatched["start_time"])
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	p, sess, _ := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Run(ctx))

	for _, table := range []entity.Table{
		schema.Songs(), schema.Artists(), schema.Users(), schema.Time(),
	} {
		rows, err := sess.ReadTable(ctx, table, table.PartitionColumns())
		require.NoError(t, err)
		switch table.Name {
		case schema.TableUsers:
			assert.Len(t, rows, 1, table.Name)
		default:
			assert.Len(t, rows, 2, table.Name)
		}
	}
}

func TestPipelineNotifications(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	require.NoError(t, p.Run(context.Background()))

	tables := make(map[string]bool)
	for done := false; !done; {
		select {
		case event := <-p.NotifyChannel():
			if event.Sender == "pipeline" {
				tables[event.Message] = true
			}
		default:
			done = true
		}
	}
	assert.Len(t, tables, 5)
}

func TestPipelineSchemaViolation(t *testing.T) {
	p, _, input := newTestPipeline(t)

	// A NextSong event without its ts key is a schema violation, not a
	// droppable row.
	writeInputFile(t, filepath.Join(input, "log_data", "2018/11/bad-events.json"),
		`{"userId":"39","firstName":"Walter","lastName":"Frye","gender":"M","level":"free","page":"NextSong","song":null,"artist":null,"sessionId":38,"location":null,"userAgent":null}`)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSchemaViolation)
}

func TestNewConfigValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNotInitialized)

	_, err = New(&Config{})
	assert.ErrorIs(t, err, ErrConfigNotInitialized)

	cfg := NewConfig()
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	sess, err := session.New(session.Config{OutputRoot: t.TempDir()})
	require.NoError(t, err)
	cfg.Session = sess
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.SongData = "in/song_data"
	cfg.LogData = "in/log_data"
	cfg.OnKeyConflict = "merge"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.OnKeyConflict = KeyConflictKeep
	p, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.NotifyChannel())
}
