// Package sparkify materializes a music-streaming analytical star schema
// from two raw JSON record collections: song/artist metadata and user
// listening-event logs. Each run fully recomputes four dimension tables
// (songs, artists, users, time) and one fact table (songplays) and writes
// them as partitioned parquet datasets through the provided Session.
package sparkify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teltech/logger"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/builder"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
	"github.com/jalexspringer/sparkify-s3/pkg/notify"
)

// Error values returned by the API. Most errors are wrapped with details;
// matching can be done with errors.Is().
var (
	ErrConfigNotInitialized = errors.New("sparkify.Config needs to be created with NewConfig()")
	ErrNotInitialized       = errors.New("pipeline not initialized")
	ErrInvalidConfig        = errors.New("invalid pipeline config")
)

// Pipeline executes the full ETL: the song-data phase (songs and artists
// dimensions) followed by the log-data phase (users and time dimensions,
// then the songplays fact table). There is no retry logic anywhere: any
// failure aborts the run and a rerun restarts every stage from the
// unmodified inputs.
type Pipeline struct {
	cfg      *Config
	id       string
	notifier *notify.Notifier
	metrics  map[string]entity.Metrics
}

// New validates the config and prepares a Pipeline. The config needs to be
// initially created with NewConfig(). Construction does no I/O; all work
// happens under the context passed to Run().
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil || !cfg.initialized {
		return nil, ErrConfigNotInitialized
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("%w: Session is required", ErrInvalidConfig)
	}
	if cfg.SongData == "" || cfg.LogData == "" {
		return nil, fmt.Errorf("%w: SongData and LogData paths are required", ErrInvalidConfig)
	}
	switch cfg.OnKeyConflict {
	case KeyConflictKeep, KeyConflictReject:
	default:
		return nil, fmt.Errorf("%w: unknown OnKeyConflict policy %q", ErrInvalidConfig, cfg.OnKeyConflict)
	}
	if cfg.NotifyChan == nil {
		size := cfg.Ops.NotifyChanSize
		if size <= 0 {
			size = defaultNotifyChanSize
		}
		cfg.NotifyChan = make(entity.NotifyChan, size)
	}

	var log *logger.Log
	if cfg.Ops.Log {
		log = logger.New()
	}
	p := &Pipeline{
		cfg:     cfg,
		id:      uuid.New().String(),
		metrics: make(map[string]entity.Metrics),
	}
	p.notifier = notify.New(cfg.NotifyChan, log, 2, "pipeline", p.id, "")
	return p, nil
}

// Run executes both phases in their required order. The songs dimension is
// fully written before the songplay build starts, since the fact build
// re-reads the materialized dimension rather than the in-memory one.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil || p.cfg == nil {
		return ErrNotInitialized
	}
	if err := p.ProcessSongData(ctx); err != nil {
		return err
	}
	return p.ProcessLogData(ctx)
}

// ProcessSongData builds and writes the songs and artists dimensions from
// the raw song/artist metadata collection.
func (p *Pipeline) ProcessSongData(ctx context.Context) error {
	validator, err := schema.NewSongValidator()
	if err != nil {
		return err
	}
	records, err := p.readRecords(ctx, p.cfg.SongData, validator)
	if err != nil {
		return err
	}

	songs := builder.NewSongBuilder(p.cfg.Ops.Partitions, builder.KeyConflictPolicy(p.cfg.OnKeyConflict))
	if err = p.buildAndWrite(ctx, records, songs.Build, songs.Metrics); err != nil {
		return err
	}

	artists := builder.NewArtistBuilder(p.cfg.Ops.Partitions, builder.KeyConflictPolicy(p.cfg.OnKeyConflict))
	return p.buildAndWrite(ctx, records, artists.Build, artists.Metrics)
}

// ProcessLogData builds and writes the users and time dimensions and the
// songplays fact table from the raw event-log collection. The songs
// dimension must already be materialized.
func (p *Pipeline) ProcessLogData(ctx context.Context) error {
	validator, err := schema.NewEventValidator()
	if err != nil {
		return err
	}
	records, err := p.readRecords(ctx, p.cfg.LogData, validator)
	if err != nil {
		return err
	}
	plays := builder.PlayEvents(records)

	users := builder.NewUserBuilder(p.cfg.Ops.Partitions, builder.KeyConflictPolicy(p.cfg.OnKeyConflict))
	if err = p.buildAndWrite(ctx, plays, users.Build, users.Metrics); err != nil {
		return err
	}

	timeDim := builder.NewTimeBuilder(p.cfg.Ops.Partitions)
	if err = p.buildAndWrite(ctx, plays, timeDim.Build, timeDim.Metrics); err != nil {
		return err
	}

	songsDef := schema.Songs()
	songRows, err := p.cfg.Session.ReadTable(ctx, songsDef, songsDef.PartitionColumns())
	if err != nil {
		return fmt.Errorf("re-reading songs dimension for the fact build: %w", err)
	}

	songplays := builder.NewSongplayBuilder(p.cfg.Ops.Partitions, p.cfg.EnrichUserAgent)
	table, err := songplays.Build(ctx, plays, songRows)
	if err != nil {
		return err
	}
	return p.writeTable(ctx, table, songplays.Metrics())
}

// NotifyChannel returns the channel carrying the pipeline's operational
// events, e.g. per-table progress and drop counts.
func (p *Pipeline) NotifyChannel() entity.NotifyChan {
	return p.cfg.NotifyChan
}

// Metrics returns per-table build metrics for the latest run, keyed on
// table name.
func (p *Pipeline) Metrics() map[string]entity.Metrics {
	out := make(map[string]entity.Metrics, len(p.metrics))
	for table, m := range p.metrics {
		out[table] = m
	}
	return out
}

func (p *Pipeline) readRecords(ctx context.Context, path string, validator *schema.Validator) ([]entity.Record, error) {
	var records []entity.Record
	err := p.cfg.Session.ReadRecords(ctx, path, func(r entity.Record) error {
		if err := validator.Validate(r); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Pipeline) buildAndWrite(
	ctx context.Context,
	records []entity.Record,
	build func(context.Context, []entity.Record) (entity.Table, error),
	metrics func() entity.Metrics) error {

	table, err := build(ctx, records)
	if err != nil {
		return err
	}
	return p.writeTable(ctx, table, metrics())
}

func (p *Pipeline) writeTable(ctx context.Context, table entity.Table, m entity.Metrics) error {
	err := p.cfg.Session.WritePartitioned(ctx, table, table.PartitionColumns(), entity.WriteModeOverwrite)
	if err != nil {
		return fmt.Errorf("writing table %s: %w", table.Name, err)
	}
	p.metrics[table.Name] = m
	p.notifier.Notify(entity.NotifyLevelInfo,
		"table %s done: %d records in, %d dropped, %d deduped, %d rows written",
		table.Name, m.RecordsRead, m.RowsDropped, m.RowsDeduped, m.RowsWritten)
	return nil
}
