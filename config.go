package sparkify

import (
	"github.com/jalexspringer/sparkify-s3/entity"
)

const (
	defaultNotifyChanSize = 100
	defaultPartitions     = 4
)

// KeyConflictPolicy decides how a dimension build treats two deduplicated
// rows sharing a primary key with differing non-key fields (e.g. the same
// user seen as both free and paid).
type KeyConflictPolicy string

const (
	// KeyConflictKeep (default) lets both rows survive, faithful to the
	// source dataset's documented behavior.
	KeyConflictKeep KeyConflictPolicy = "keep"

	// KeyConflictReject aborts the run with entity.ErrKeyConflict.
	KeyConflictReject KeyConflictPolicy = "reject"
)

// Config needs to be created with NewConfig() and filled in with config as
// applicable for the intended setup, and provided in the call to New().
type Config struct {

	// Session is the compute/session context the pipeline runs against.
	// It is constructed once by the entrypoint and required.
	Session entity.Session

	// SongData is the path (local or s3://) of the raw song/artist metadata
	// record collection.
	SongData string

	// LogData is the path of the raw listening-event log collection.
	LogData string

	// OnKeyConflict selects the duplicate-primary-key policy for the
	// dimension builds. Defaults to KeyConflictKeep.
	OnKeyConflict KeyConflictPolicy

	// EnrichUserAgent adds ua_platform/ua_os/ua_browser columns parsed from
	// the raw user_agent string to the songplays table. Off by default; the
	// fixed column set is the documented contract.
	EnrichUserAgent bool

	Ops OpsConfig

	// NotifyChan receives operational events from the pipeline. If nil a
	// channel of size Ops.NotifyChanSize is created; access it with
	// Pipeline.NotifyChannel().
	NotifyChan entity.NotifyChan

	initialized bool
}

// OpsConfig provides options for observability and evaluation parallelism.
type OpsConfig struct {

	// If set to true native logging will be used (debug, info, warn, and
	// error logs). If set to false (default) no standard logging will be
	// done, but the same type of information will be provided on the
	// notification channel.
	Log bool

	// Size of the notification channel buffer, when the channel is created
	// by the pipeline.
	NotifyChanSize int

	// Partitions caps how many data partitions each builder evaluates
	// concurrently.
	Partitions int
}

// NewConfig returns an initialized Config struct, required for New().
// The Session, SongData and LogData fields must be filled in before use.
func NewConfig() *Config {
	return &Config{
		OnKeyConflict: KeyConflictKeep,
		Ops: OpsConfig{
			NotifyChanSize: defaultNotifyChanSize,
			Partitions:     defaultPartitions,
		},
		initialized: true,
	}
}
