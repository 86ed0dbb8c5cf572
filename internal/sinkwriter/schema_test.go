package sinkwriter

import (
	"testing"

	"github.com/flowsink/partitionwriter/internal/schema"
)

func TestSchemaAdaptorFirstSchemaIsAlwaysNew(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, false)
	isNew, current := a.decide(&schema.Schema{Name: "a", Version: 1}, 0, 0)
	if !isNew {
		t.Fatalf("the very first schema seen must always be reported as new")
	}
	if current != nil {
		t.Fatalf("current schema should be absent before the tracker has been updated")
	}
}

func TestSchemaAdaptorSameSchemaMidBatchIsNotNew(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, false)
	s := &schema.Schema{Name: "a", Version: 1}
	a.update(s)
	isNew, _ := a.decide(s, 5, 10)
	if isNew {
		t.Fatalf("the active schema repeating mid-batch must not be reported as new")
	}
}

func TestSchemaAdaptorNameChangeMidBatchIsNewRegardlessOfCounter(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, false)
	a.update(&schema.Schema{Name: "a", Version: 1})
	isNew, _ := a.decide(&schema.Schema{Name: "b", Version: 1}, 5, 10)
	if !isNew {
		t.Fatalf("a different schema name mid-batch must be reported as new even with multiSchemaSupport off")
	}
}

func TestSchemaAdaptorMultiSchemaSupportTreatsEveryFirstSightingAsNew(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, true)
	a.update(&schema.Schema{Name: "a", Version: 1})
	isNew, _ := a.decide(&schema.Schema{Name: "b", Version: 1}, 5, 10)
	if !isNew {
		t.Fatalf("multiSchemaSupport must treat any unseen schema name as new, even mid-batch")
	}
}

func TestSchemaAdaptorMultiSchemaSupportAlternatingKnownSchemasIsNotNew(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, true)
	sa := &schema.Schema{Name: "a", Version: 1}
	sb := &schema.Schema{Name: "b", Version: 1}
	a.update(sa)
	a.update(sb)

	isNew, _ := a.decide(sa, 5, 10)
	if isNew {
		t.Fatalf("alternating back to an already-tracked schema under multiSchemaSupport must not be reported as new")
	}
	isNew, _ = a.decide(sb, 5, 11)
	if isNew {
		t.Fatalf("alternating back to an already-tracked schema under multiSchemaSupport must not be reported as new")
	}
}

func TestSchemaAdaptorProjectDelegatesToPolicy(t *testing.T) {
	a := newSchemaAdaptor(schema.NewMemoryTracker(), schema.NoneCompatibility{}, false)
	out, err := a.project([]byte("v"), nil, nil)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if string(out) != "v" {
		t.Fatalf("NoneCompatibility.Project must pass the value through unchanged, got %q", out)
	}
}
