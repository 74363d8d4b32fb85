package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jalexspringer/sparkify-s3/entity"
)

// Raw-record schemas. Every expected field must be present as a key; an
// explicit null is allowed here and handled downstream by the builders'
// null-filters. A missing key or a value of the wrong type is a schema
// violation and aborts the run.
var (
	songRecordSchema = []byte(`
{
	"type": "object",
	"required": [
		"song_id", "title", "artist_id", "year", "duration",
		"artist_name", "artist_location", "artist_latitude", "artist_longitude"
	],
	"properties": {
		"song_id":          {"type": ["string", "null"]},
		"title":            {"type": ["string", "null"]},
		"artist_id":        {"type": ["string", "null"]},
		"year":             {"type": ["integer", "null"]},
		"duration":         {"type": ["number", "null"]},
		"artist_name":      {"type": ["string", "null"]},
		"artist_location":  {"type": ["string", "null"]},
		"artist_latitude":  {"type": ["number", "null"]},
		"artist_longitude": {"type": ["number", "null"]}
	}
}`)

	eventRecordSchema = []byte(`
{
	"type": "object",
	"required": [
		"userId", "firstName", "lastName", "gender", "level", "ts",
		"page", "song", "artist", "sessionId", "location", "userAgent"
	],
	"properties": {
		"userId":    {"type": ["string", "integer", "null"]},
		"firstName": {"type": ["string", "null"]},
		"lastName":  {"type": ["string", "null"]},
		"gender":    {"type": ["string", "null"]},
		"level":     {"type": ["string", "null"]},
		"ts":        {"type": "integer"},
		"page":      {"type": "string"},
		"song":      {"type": ["string", "null"]},
		"artist":    {"type": ["string", "null"]},
		"sessionId": {"type": ["integer", "null"]},
		"location":  {"type": ["string", "null"]},
		"userAgent": {"type": ["string", "null"]}
	}
}`)
)

// Validator checks raw records against one of the source-record schemas.
type Validator struct {
	schema *gojsonschema.Schema
	source string
}

// NewSongValidator returns a validator for song/artist metadata records.
func NewSongValidator() (*Validator, error) {
	return newValidator(songRecordSchema, "song_data")
}

// NewEventValidator returns a validator for listening-event log records.
func NewEventValidator() (*Validator, error) {
	return newValidator(eventRecordSchema, "log_data")
}

func newValidator(schemaData []byte, source string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("compiling %s record schema: %w", source, err)
	}
	return &Validator{schema: s, source: source}, nil
}

// Validate returns entity.ErrSchemaViolation (wrapped with details) if the
// record does not conform to the source schema.
func (v *Validator) Validate(record entity.Record) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(record.Data))
	if err != nil {
		return fmt.Errorf("%w: %s record not parseable (%v), record: %s",
			entity.ErrSchemaViolation, v.source, err, record.String())
	}
	if result.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %s record failed validation (%v), record: %s",
		entity.ErrSchemaViolation, v.source, result.Errors(), record.String())
}
