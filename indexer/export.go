package indexer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 1000

type parquetEvent struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Address    string `parquet:"name=address, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	RecordedAt string `parquet:"name=recorded_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes every journaled event to a parquet file at path in
// journal order and returns the number of rows written.
func (j *Journal) ExportParquet(ctx context.Context, path string) (int, error) {
	if j == nil {
		return 0, fmt.Errorf("journal not configured")
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetEvent), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	var lastID int64
	for {
		var rows []record
		err := j.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(exportPageSize).
			Find(&rows).Error
		if err != nil {
			pw.WriteStop()
			file.Close()
			return written, fmt.Errorf("indexer: read events: %w", err)
		}
		for _, row := range rows {
			if err := pw.Write(&parquetEvent{
				ID:         row.ID,
				Type:       row.Type,
				Address:    row.Address,
				Attributes: row.Attributes,
				RecordedAt: row.RecordedAt.UTC().Format(time.RFC3339),
			}); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: parquet write: %w", err)
			}
			written++
			lastID = row.ID
		}
		if len(rows) < exportPageSize {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return written, nil
}
