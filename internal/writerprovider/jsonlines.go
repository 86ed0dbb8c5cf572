package writerprovider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/flowsink/partitionwriter/internal/record"
)

// jsonLine is the on-disk shape of one gzipped JSON-lines record.
type jsonLine struct {
	Offset int64  `json:"offset"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value"`
}

// JSONLinesProvider writes records as newline-delimited, gzip-compressed
// JSON. Keys and values are base64-encoded since record payloads are
// opaque bytes, not necessarily valid UTF-8.
type JSONLinesProvider struct{}

// NewJSONLinesProvider returns a Provider for the "jsonl.gz" RecordWriter
// format.
func NewJSONLinesProvider() *JSONLinesProvider {
	return &JSONLinesProvider{}
}

func (JSONLinesProvider) GetExtension() string {
	return "jsonl.gz"
}

func (JSONLinesProvider) GetRecordWriter(dst io.WriteCloser, sampleRecord *record.Record) (RecordWriter, error) {
	gz := gzip.NewWriter(dst)
	return &jsonLinesWriter{
		dst: dst,
		gz:  gz,
		enc: json.NewEncoder(gz),
	}, nil
}

type jsonLinesWriter struct {
	dst io.WriteCloser
	gz  *gzip.Writer
	enc *json.Encoder
}

func (w *jsonLinesWriter) Write(rec *record.Record) error {
	line := jsonLine{
		Offset: rec.Offset,
		Value:  base64.StdEncoding.EncodeToString(rec.Value),
	}
	if rec.Key != nil {
		line.Key = base64.StdEncoding.EncodeToString(rec.Key)
	}
	if err := w.enc.Encode(line); err != nil {
		return fmt.Errorf("writerprovider: jsonlines write: %w", err)
	}
	return nil
}

func (w *jsonLinesWriter) Flush() error {
	if err := w.gz.Flush(); err != nil {
		return fmt.Errorf("writerprovider: jsonlines flush: %w", err)
	}
	return nil
}

func (w *jsonLinesWriter) Close() error {
	if err := w.gz.Close(); err != nil {
		return fmt.Errorf("writerprovider: jsonlines close: %w", err)
	}
	return w.dst.Close()
}
