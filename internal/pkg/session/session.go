// Package session implements the compute/session context the pipeline runs
// against: JSON record reading and partitioned parquet table writes over a
// local filesystem or S3, selected per path by URI scheme.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teltech/logger"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/jalexspringer/sparkify-s3/entity"
	"github.com/jalexspringer/sparkify-s3/internal/pkg/schema"
	"github.com/jalexspringer/sparkify-s3/pkg/notify"
)

const (
	defaultParallel = 4
	senderName      = "session"
)

var ErrUnsupportedWriteMode = errors.New("only overwrite mode is supported")

// Config for creating a Session. The session is constructed once by the
// entrypoint and passed into the pipeline; core logic never builds one.
type Config struct {

	// OutputRoot is where the output tables are materialized, a local
	// directory or an s3:// URI.
	OutputRoot string

	// Credentials for S3 access, applied when any path is an s3:// URI.
	Credentials Credentials

	// TempDir is the local staging area for parquet part files before
	// commit. Defaults to the OS temp dir.
	TempDir string

	// Parallel caps concurrent part-file writes and the parquet codec
	// parallelism.
	Parallel int

	NotifyChan entity.NotifyChan
	Log        bool
}

// Session implements entity.Session.
type Session struct {
	cfg      Config
	id       string
	local    Store
	s3       Store
	s3Mutex  sync.Mutex
	notifier *notify.Notifier
}

func New(cfg Config) (*Session, error) {
	if cfg.OutputRoot == "" {
		return nil, errors.New("session config is missing the output root")
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = defaultParallel
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	var log *logger.Log
	if cfg.Log {
		log = logger.New()
	}
	s := &Session{
		cfg:   cfg,
		id:    uuid.New().String(),
		local: newLocalStore(),
	}
	s.notifier = notify.New(cfg.NotifyChan, log, 2, senderName, s.id, "")
	return s, nil
}

func (s *Session) storeFor(path string) (Store, error) {
	if !IsS3Path(path) {
		return s.local, nil
	}
	s.s3Mutex.Lock()
	defer s.s3Mutex.Unlock()
	if s.s3 == nil {
		store, err := newS3Store(s.cfg.Credentials)
		if err != nil {
			return nil, err
		}
		s.s3 = store
	}
	return s.s3, nil
}

// ReadRecords streams all records found in files under path to process.
// Files may hold one JSON value (object or array of objects) or be
// line-delimited JSON. Hidden and marker files (leading "." or "_") are
// skipped, as are records that are not valid JSON values at the line level
// only if the whole file parses; a file that parses neither way is fatal.
func (s *Session) ReadRecords(ctx context.Context, path string, process entity.ProcessRecordFunc) error {
	store, err := s.storeFor(path)
	if err != nil {
		return err
	}
	files, err := store.List(ctx, path)
	if err != nil {
		return err
	}

	var numFiles, numRecords int
	for _, file := range files {
		if hiddenFile(file) {
			continue
		}
		numFiles++
		data, err := store.Fetch(ctx, file)
		if err != nil {
			return err
		}
		n, err := parseRecords(data, file, process)
		if err != nil {
			return err
		}
		numRecords += n
	}
	if numFiles == 0 {
		return fmt.Errorf("no input files found under %s", path)
	}
	s.notifier.Notify(entity.NotifyLevelInfo, "read %d records from %d files under %s", numRecords, numFiles, path)
	return nil
}

// WritePartitioned stages each partition as a local parquet part file, then
// commits: the table's previous output location is removed in full and the
// staged files are put in place. A failure while staging leaves the prior
// table contents untouched; a failure during commit leaves the table
// incomplete and requires a rerun, per the no-partial-commit contract.
func (s *Session) WritePartitioned(ctx context.Context, table entity.Table, partitionBy []string, mode entity.WriteMode) error {
	if mode != entity.WriteModeOverwrite {
		return ErrUnsupportedWriteMode
	}
	if err := validatePartitionColumns(table, partitionBy); err != nil {
		return err
	}

	location := s.tableLocation(table.Name)
	store, err := s.storeFor(location)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(s.cfg.TempDir, "sparkify-"+table.Name+"-")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	groups := groupRows(table.Rows, partitionBy)
	jsonSchema := schema.WriterSchema(table, partitionBy)
	exclude := make(map[string]bool, len(partitionBy))
	for _, col := range partitionBy {
		exclude[col] = true
	}

	type partFile struct {
		partitionPath string
		localFile     string
	}
	parts := make([]partFile, 0, len(groups))
	for partitionPath := range groups {
		parts = append(parts, partFile{
			partitionPath: partitionPath,
			localFile:     filepath.Join(staging, fmt.Sprintf("part-%05d-%s.snappy.parquet", len(parts), uuid.New().String())),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallel)
	for _, part := range parts {
		part := part
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return writePartFile(part.localFile, jsonSchema, groups[part.partitionPath], exclude, int64(s.cfg.Parallel))
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	// Commit. From here on the old table contents are gone.
	if err = store.RemoveAll(ctx, location); err != nil {
		return fmt.Errorf("overwriting %s: %w", location, err)
	}
	for _, part := range parts {
		dest := Join(location, part.partitionPath, filepath.Base(part.localFile))
		if err = store.Put(ctx, dest, part.localFile); err != nil {
			return err
		}
	}

	s.notifier.Notify(entity.NotifyLevelInfo, "wrote %d rows in %d partitions to %s", len(table.Rows), len(parts), location)
	return nil
}

// ReadTable reads back a previously materialized table. Partition column
// values are recovered from the partition directory names and converted to
// the column types in the table definition.
func (s *Session) ReadTable(ctx context.Context, table entity.Table, partitionBy []string) ([]entity.Row, error) {
	location := s.tableLocation(table.Name)
	store, err := s.storeFor(location)
	if err != nil {
		return nil, err
	}
	files, err := store.List(ctx, location)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]entity.Field, len(table.Fields))
	for _, f := range table.Fields {
		fields[f.Name] = f
	}
	exclude := make(map[string]bool, len(partitionBy))
	for _, col := range partitionBy {
		exclude[col] = true
	}

	var rows []entity.Row
	var numFiles int
	for _, file := range files {
		if hiddenFile(file) || !strings.HasSuffix(file, ".parquet") {
			continue
		}
		numFiles++

		partitionValues, err := parsePartitionPath(file, location, fields)
		if err != nil {
			return nil, err
		}
		data, err := store.Fetch(ctx, file)
		if err != nil {
			return nil, err
		}
		fileRows, err := readPartFile(data, table, exclude, int64(s.cfg.Parallel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		for _, row := range fileRows {
			for col, v := range partitionValues {
				row[col] = v
			}
		}
		rows = append(rows, fileRows...)
	}
	if numFiles == 0 {
		return nil, fmt.Errorf("table %s has no part files under %s", table.Name, location)
	}
	s.notifier.Notify(entity.NotifyLevelInfo, "read %d rows from %d part files of table %s", len(rows), numFiles, table.Name)
	return rows, nil
}

func (s *Session) tableLocation(name string) string {
	return Join(s.cfg.OutputRoot, name+".parquet")
}

func validatePartitionColumns(table entity.Table, partitionBy []string) error {
	known := make(map[string]bool, len(table.Fields))
	for _, f := range table.Fields {
		known[f.Name] = true
	}
	for _, col := range partitionBy {
		if !known[col] {
			return fmt.Errorf("partition column %s is not a column of table %s", col, table.Name)
		}
	}
	return nil
}

// groupRows splits rows into partition groups keyed on their relative
// partition path, e.g. "year=2018/month=11".
func groupRows(rows []entity.Row, partitionBy []string) map[string][]entity.Row {
	groups := make(map[string][]entity.Row)
	for _, row := range rows {
		segments := make([]string, 0, len(partitionBy))
		for _, col := range partitionBy {
			segments = append(segments, col+"="+formatPartitionValue(row[col]))
		}
		key := strings.Join(segments, "/")
		groups[key] = append(groups[key], row)
	}
	return groups
}

// parsePartitionPath extracts the column values encoded in the partition
// directories between the table location and the part file.
func parsePartitionPath(file, location string, fields map[string]entity.Field) (map[string]any, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(file), filepath.ToSlash(location))
	rel = strings.TrimPrefix(rel, "/")
	segments := strings.Split(rel, "/")

	values := make(map[string]any)
	for _, segment := range segments[:len(segments)-1] {
		col, raw, found := strings.Cut(segment, "=")
		if !found {
			return nil, fmt.Errorf("malformed partition directory %q in %s", segment, file)
		}
		f, ok := fields[col]
		if !ok {
			return nil, fmt.Errorf("unknown partition column %q in %s", col, file)
		}
		v, err := partitionColumnValue(f, raw)
		if err != nil {
			return nil, err
		}
		values[col] = v
	}
	return values, nil
}

func hiddenFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_")
}

// parseRecords parses one input file's content into records. A file is
// either a single JSON value (an object, or an array of objects) or
// line-delimited JSON objects.
func parseRecords(data []byte, source string, process entity.ProcessRecordFunc) (int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, nil
	}

	if gjson.ValidBytes(trimmed) {
		parsed := gjson.ParseBytes(trimmed)
		if parsed.IsArray() {
			var n int
			var perr error
			parsed.ForEach(func(_, item gjson.Result) bool {
				if perr = process(entity.Record{Data: []byte(item.Raw), Source: source}); perr != nil {
					return false
				}
				n++
				return true
			})
			return n, perr
		}
		return 1, process(entity.Record{Data: trimmed, Source: source})
	}

	var n int
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return n, fmt.Errorf("%w: invalid JSON in %s", entity.ErrSchemaViolation, source)
		}
		if err := process(entity.Record{Data: line, Source: source}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
