package sinkwriter

import "github.com/flowsink/partitionwriter/internal/schema"

// schemaAdaptor is the thin layer over schema.Tracker and
// schema.CompatibilityPolicy the core calls through, per spec.md §4.7. It
// never inspects schema internals beyond what Tracker.GetOrLoadCurrentSchema
// already returns.
type schemaAdaptor struct {
	tracker            schema.Tracker
	policy             schema.CompatibilityPolicy
	multiSchemaSupport bool

	// activeName is the name of the schema the writer is currently
	// producing files for. Unlike the per-name Tracker, this is a single
	// value: a writer produces one active schema at a time (absent
	// multiSchemaSupport's per-schema fan-out), so a name change here is
	// itself a schema-transition signal independent of what the Tracker
	// has on file for that name.
	activeName string
}

func newSchemaAdaptor(tracker schema.Tracker, policy schema.CompatibilityPolicy, multiSchemaSupport bool) *schemaAdaptor {
	return &schemaAdaptor{tracker: tracker, policy: policy, multiSchemaSupport: multiSchemaSupport}
}

// decide evaluates the "new schema" predicate of spec.md §4.1: true iff
// (recordCounter <= 0 OR multiSchemaSupport) AND valueSchema present AND
// currentSchema absent; OR the record's schema name differs from the
// writer's active schema (a genuine mid-stream transition, independent of
// recordCounter); OR the compatibility policy forces a change on the
// active schema's own evolution (e.g. a version bump under the same name).
// It returns the current schema found for valueSchema's name, if any, so
// the caller can both decide and project without a second tracker lookup.
func (a *schemaAdaptor) decide(valueSchema *schema.Schema, recordCounter int, offset int64) (isNewSchema bool, current *schema.Schema) {
	if valueSchema == nil {
		return false, nil
	}

	var ok bool
	current, ok = a.tracker.GetOrLoadCurrentSchema(valueSchema.Name, offset)

	absentTriggersNew := (recordCounter <= 0 || a.multiSchemaSupport) && !ok
	nameChanged := !a.multiSchemaSupport && a.activeName != "" && valueSchema.Name != a.activeName
	forced := a.policy.ShouldChangeSchema(valueSchema, nil, current)

	return absentTriggersNew || nameChanged || forced, current
}

func (a *schemaAdaptor) update(s *schema.Schema) {
	a.tracker.Update(s)
	if s != nil {
		a.activeName = s.Name
	}
}

func (a *schemaAdaptor) project(value []byte, from, to *schema.Schema) ([]byte, error) {
	return a.policy.Project(value, from, to)
}
