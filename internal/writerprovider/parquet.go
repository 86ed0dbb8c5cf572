package writerprovider

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/flowsink/partitionwriter/internal/record"
)

// row is the on-disk parquet shape every committed parquet file uses. The
// core never constructs this type itself — it is private to this provider,
// matching the "writer internals are opaque to the core" boundary the rest
// of this package family keeps.
type row struct {
	Offset int64  `parquet:"offset"`
	Key    []byte `parquet:"key,optional"`
	Value  []byte `parquet:"value"`
}

// ParquetProvider writes records as parquet files via parquet-go.
type ParquetProvider struct{}

// NewParquetProvider returns a Provider for the "parquet" RecordWriter
// format.
func NewParquetProvider() *ParquetProvider {
	return &ParquetProvider{}
}

func (ParquetProvider) GetExtension() string {
	return "parquet"
}

func (ParquetProvider) GetRecordWriter(dst io.WriteCloser, sampleRecord *record.Record) (RecordWriter, error) {
	return &parquetWriter{
		dst: dst,
		w:   parquet.NewGenericWriter[row](dst),
	}, nil
}

type parquetWriter struct {
	dst io.WriteCloser
	w   *parquet.GenericWriter[row]
}

func (p *parquetWriter) Write(rec *record.Record) error {
	_, err := p.w.Write([]row{{Offset: rec.Offset, Key: rec.Key, Value: rec.Value}})
	if err != nil {
		return fmt.Errorf("writerprovider: parquet write: %w", err)
	}
	return nil
}

func (p *parquetWriter) Flush() error {
	if err := p.w.Flush(); err != nil {
		return fmt.Errorf("writerprovider: parquet flush: %w", err)
	}
	return nil
}

func (p *parquetWriter) Close() error {
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("writerprovider: parquet close: %w", err)
	}
	return p.dst.Close()
}
