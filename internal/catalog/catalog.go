// Package catalog implements the optional schema-catalog side effect:
// registering committed directory layout with a Hive-like metastore. It is
// the HiveService external collaborator of spec.md §6.
package catalog

import (
	"github.com/flowsink/partitionwriter/internal/record"
	"github.com/flowsink/partitionwriter/internal/schema"
)

// HiveService is the catalog side effect the writer calls on schema
// transitions and on first-write-to-a-partition. The core treats it as a
// black box: a failure here is fatal (spec.md §7), not retried like
// storage/WAL I/O.
type HiveService interface {
	CreateHiveTable(s *schema.Schema) error
	AlterHiveSchema(s *schema.Schema) error
	AddHivePartition(rec *record.Record, s *schema.Schema) error
}

// NoopCatalog discards every call. It is wired in when hive.integration is
// disabled, so the core never needs a nil check on its HiveService field.
type NoopCatalog struct{}

func (NoopCatalog) CreateHiveTable(*schema.Schema) error                  { return nil }
func (NoopCatalog) AlterHiveSchema(*schema.Schema) error                  { return nil }
func (NoopCatalog) AddHivePartition(*record.Record, *schema.Schema) error { return nil }
