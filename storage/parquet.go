package storage

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	quorumbench "quorum-bench"
)

// ParquetWriter exports tagged latency records to a Parquet file
type ParquetWriter struct {
	writer    *writer.ParquetWriter
	file      source.ParquetFile
	mutex     sync.Mutex
	filePath  string
	batchSize int
	rows      []quorumbench.LatencyRow
	written   int64
}

// NewParquetWriter creates a new Parquet writer at filePath
func NewParquetWriter(filePath string, batchSize int) (*ParquetWriter, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if err := ensureParent(filePath); err != nil {
		return nil, err
	}

	file, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create parquet file")
	}

	pw, err := writer.NewParquetWriter(file, new(quorumbench.LatencyRow), 4)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to create parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	return &ParquetWriter{
		writer:    pw,
		file:      file,
		filePath:  filePath,
		batchSize: batchSize,
		rows:      make([]quorumbench.LatencyRow, 0, batchSize),
	}, nil
}

// WriteRecord adds a record to the batch and flushes if the batch is full
func (pw *ParquetWriter) WriteRecord(rec quorumbench.TaggedRecord) error {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()

	pw.rows = append(pw.rows, quorumbench.NewLatencyRow(rec, pw.written+int64(len(pw.rows))))

	if len(pw.rows) >= pw.batchSize {
		return pw.flush()
	}

	return nil
}

// flush writes the current batch to the Parquet file
func (pw *ParquetWriter) flush() error {
	if len(pw.rows) == 0 {
		return nil
	}

	for _, row := range pw.rows {
		if err := pw.writer.Write(row); err != nil {
			return errors.Wrap(err, "failed to write row")
		}
	}

	pw.written += int64(len(pw.rows))
	pw.rows = pw.rows[:0]
	return nil
}

// Close flushes any remaining rows and closes the writer
func (pw *ParquetWriter) Close() error {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()

	if err := pw.flush(); err != nil {
		return err
	}

	if err := pw.writer.WriteStop(); err != nil {
		return errors.Wrapf(err, "failed to stop parquet writer for %s", pw.filePath)
	}

	if err := pw.file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close parquet file %s", pw.filePath)
	}

	return nil
}

// Written returns the number of rows flushed to the file
func (pw *ParquetWriter) Written() int64 {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()
	return pw.written
}

// ExportRecords writes records to a new Parquet file at path and returns the row count
func ExportRecords(path string, records []quorumbench.TaggedRecord) (int64, error) {
	pw, err := NewParquetWriter(path, 1000)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if err := pw.WriteRecord(rec); err != nil {
			pw.Close()
			return 0, err
		}
	}

	if err := pw.Close(); err != nil {
		return 0, err
	}
	return pw.Written(), nil
}
