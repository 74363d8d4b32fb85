package session

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/jalexspringer/sparkify-s3/entity"
)

const parquetRootName = "parquet_go_root"

// writePartFile writes one partition's rows as a snappy-compressed parquet
// file at path. Columns listed in exclude (the partition columns) are
// stripped from each row before writing.
func writePartFile(path, jsonSchema string, rows []entity.Row, exclude map[string]bool, parallel int64) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating part file %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewJSONWriter(jsonSchema, fw, parallel)
	if err != nil {
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		out := make(map[string]any, len(row))
		for col, v := range row {
			if !exclude[col] {
				out[col] = v
			}
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encoding row for %s: %w", path, err)
		}
		if err = pw.Write(string(data)); err != nil {
			return fmt.Errorf("writing row to %s: %w", path, err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return fmt.Errorf("finalizing part file %s: %w", path, err)
	}
	return fw.Close()
}

// readPartFile reads all rows of one parquet part file held in memory,
// returning the non-partition columns of the given table definition.
func readPartFile(data []byte, table entity.Table, exclude map[string]bool, parallel int64) ([]entity.Row, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, parallel)
	if err != nil {
		return nil, fmt.Errorf("opening parquet part file: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	rows := make([]entity.Row, numRows)
	for i := range rows {
		rows[i] = make(entity.Row, len(table.Fields))
	}

	for _, f := range table.Fields {
		if exclude[f.Name] {
			continue
		}
		path := common.ReformPathStr(parquetRootName + "." + f.Name)
		values, _, dls, err := pr.ReadColumnByPath(path, int64(numRows))
		if err != nil {
			return nil, fmt.Errorf("reading column %s: %w", f.Name, err)
		}
		if !f.Optional {
			// Required column: definition levels are all zero and every
			// entry is a value.
			for i := 0; i < numRows && i < len(values); i++ {
				rows[i][f.Name] = values[i]
			}
			continue
		}
		// Optional column: a definition level of zero marks a null. The
		// values slice may be aligned with the definition levels (nulls as
		// nil entries) or hold defined values only; handle both layouts.
		aligned := len(values) == len(dls)
		vi := 0
		for i := 0; i < numRows && i < len(dls); i++ {
			if dls[i] == 0 {
				rows[i][f.Name] = nil
				if aligned {
					vi++
				}
				continue
			}
			if vi < len(values) {
				rows[i][f.Name] = values[vi]
			}
			vi++
		}
	}
	return rows, nil
}

// partitionColumnValue converts a partition directory value back to the
// column's type. The hive default partition name maps back to null.
func partitionColumnValue(f entity.Field, raw string) (any, error) {
	if raw == hiveDefaultPartition {
		return nil, nil
	}
	value := unescapePartitionValue(raw)
	switch f.Type {
	case "INT32":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("partition column %s: %w", f.Name, err)
		}
		return int32(n), nil
	case "INT64":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("partition column %s: %w", f.Name, err)
		}
		return n, nil
	case "DOUBLE", "FLOAT":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("partition column %s: %w", f.Name, err)
		}
		return n, nil
	default:
		return value, nil
	}
}
