// Package writerprovider constructs the per-temp-file record writer the
// core's writer registry opens one of per encoded partition. It is the
// RecordWriterProvider external collaborator of spec.md §6.
package writerprovider

import (
	"io"

	"github.com/flowsink/partitionwriter/internal/record"
)

// RecordWriter appends records to one temp file. Flush forces any buffered
// bytes to the underlying writer without closing it; Close finalizes the
// file (e.g. writing a parquet footer) and releases its handle.
type RecordWriter interface {
	Write(rec *record.Record) error
	Flush() error
	Close() error
}

// Provider constructs a RecordWriter bound to a temp path, and reports the
// filename extension committed files of its format should carry.
type Provider interface {
	GetRecordWriter(dst io.WriteCloser, sampleRecord *record.Record) (RecordWriter, error)
	GetExtension() string
}
