package entity

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is a single raw, schemaless JSON record as read from a source
// collection. Fields are accessed by name with Get(); the record keeps its
// origin for diagnostics.
type Record struct {
	Data   []byte
	Source string
}

// Get returns the named field of the record. The result's Exists()/Type
// distinguish an absent key from an explicit null value, which matters for
// the null-filter vs schema-violation split in the builders.
func (r Record) Get(field string) gjson.Result {
	return gjson.GetBytes(r.Data, field)
}

func (r Record) String() string {
	return fmt.Sprintf("source: %s, data: %s", r.Source, string(r.Data))
}

// ProcessRecordFunc is called by Session.ReadRecords for each record in the
// source sequence. Returning a non-nil error aborts the read.
type ProcessRecordFunc func(record Record) error
