// Package record defines the unit of data the per-partition writer consumes.
package record

import (
	"time"

	"github.com/flowsink/partitionwriter/internal/schema"
)

// Record is a single message pulled from one source partition of a topic.
// Offset is the kafka-offset spec.md refers to throughout: a monotonically
// increasing sequence number within (Topic, Partition).
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte

	// Timestamp is the broker-assigned record time, used by
	// timestamp.RecordTimestampExtractor implementations that decode
	// event-time from the record itself rather than from the payload.
	Timestamp time.Time

	// ValueSchema is nil when the record carries no schema information.
	// "valueSchema present" in spec.md §4.1 means ValueSchema != nil.
	ValueSchema *schema.Schema
}
