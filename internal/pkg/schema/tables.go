// Package schema holds the analytical star schema (four dimension tables and
// one fact table) together with the raw source-record schemas used for input
// validation.
package schema

import (
	"fmt"
	"strings"

	"github.com/jalexspringer/sparkify-s3/entity"
)

// Output table names. Each table is materialized as a partitioned parquet
// dataset named "<table>.parquet" under the output root.
const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

// Songs is the song dimension: one row per distinct projected song record,
// partitioned by (year, artist_id).
func Songs() entity.Table {
	return entity.Table{
		Name: TableSongs,
		Fields: []entity.Field{
			{Name: "song_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8"},
			{Name: "title", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "duration", Type: "DOUBLE", Optional: true},
			{Name: "year", Type: "INT32", Partition: true},
			{Name: "artist_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Partition: true},
		},
	}
}

// Artists is the artist dimension, partitioned by location. Location is
// free text and high-cardinality, which makes it an unusual partition
// column, but it is the documented layout of this dataset.
func Artists() entity.Table {
	return entity.Table{
		Name: TableArtists,
		Fields: []entity.Field{
			{Name: "artist_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8"},
			{Name: "name", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "latitude", Type: "DOUBLE", Optional: true},
			{Name: "longitude", Type: "DOUBLE", Optional: true},
			{Name: "location", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Partition: true},
		},
	}
}

// Users is the user dimension, partitioned by gender.
func Users() entity.Table {
	return entity.Table{
		Name: TableUsers,
		Fields: []entity.Field{
			{Name: "user_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8"},
			{Name: "first_name", Type: "BYTE_ARRAY", ConvertedType: "UTF8"},
			{Name: "last_name", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "level", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "gender", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Partition: true},
		},
	}
}

// Time is the time dimension: one row per distinct play timestamp,
// partitioned by (year, month). start_time is epoch milliseconds truncated
// to whole seconds, UTC.
func Time() entity.Table {
	return entity.Table{
		Name: TableTime,
		Fields: []entity.Field{
			{Name: "start_time", Type: "INT64", ConvertedType: "TIMESTAMP_MILLIS"},
			{Name: "hour", Type: "INT32"},
			{Name: "day", Type: "INT32"},
			{Name: "week", Type: "INT32"},
			{Name: "weekday", Type: "INT32"},
			{Name: "year", Type: "INT32", Partition: true},
			{Name: "month", Type: "INT32", Partition: true},
		},
	}
}

// Songplays is the fact table: one row per NextSong event, left-joined
// against the song dimension, partitioned by (year, month). song_id and
// artist_id are null for events with no matching song.
//
// With enrichUserAgent set, three extra columns parsed from the raw
// user_agent string are appended.
func Songplays(enrichUserAgent bool) entity.Table {
	t := entity.Table{
		Name: TableSongplays,
		Fields: []entity.Field{
			{Name: "songplay_id", Type: "INT64"},
			{Name: "start_time", Type: "INT64", ConvertedType: "TIMESTAMP_MILLIS"},
			{Name: "user_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "level", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "song_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "artist_id", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "session_id", Type: "INT64", Optional: true},
			{Name: "location", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "user_agent", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			{Name: "year", Type: "INT32", Partition: true},
			{Name: "month", Type: "INT32", Partition: true},
		},
	}
	if enrichUserAgent {
		t.Fields = append(t.Fields,
			entity.Field{Name: "ua_platform", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			entity.Field{Name: "ua_os", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
			entity.Field{Name: "ua_browser", Type: "BYTE_ARRAY", ConvertedType: "UTF8", Optional: true},
		)
	}
	return t
}

// WriterSchema renders the parquet-go JSON schema for the table's part
// files. The listed partition columns are excluded since their values live
// in the partition directory names, not in the files.
func WriterSchema(t entity.Table, partitionBy []string) string {
	excluded := make(map[string]bool, len(partitionBy))
	for _, col := range partitionBy {
		excluded[col] = true
	}
	var fields []string
	for _, f := range t.Fields {
		if excluded[f.Name] {
			continue
		}
		fields = append(fields, fmt.Sprintf("{%q: %q}", "Tag", FieldTag(f)))
	}
	return fmt.Sprintf(`{"Tag": "name=parquet_go_root, repetitiontype=REQUIRED", "Fields": [%s]}`,
		strings.Join(fields, ", "))
}

// FieldTag renders a single parquet-go field tag for f.
func FieldTag(f entity.Field) string {
	tag := fmt.Sprintf("name=%s, type=%s", f.Name, f.Type)
	if f.ConvertedType != "" {
		tag += ", convertedtype=" + f.ConvertedType
	}
	rep := "REQUIRED"
	if f.Optional {
		rep = "OPTIONAL"
	}
	return tag + ", repetitiontype=" + rep
}
