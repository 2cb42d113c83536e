package resource

import "github.com/edgeflare/restable/pkg/catalog"

// Classification tells which direction a field travels in.
type Classification struct {
	// DumpOnly fields are emitted but never accepted as input.
	DumpOnly bool
	// LoadOnly fields are accepted but never emitted.
	LoadOnly bool
}

// Readable reports whether the field appears in dump output.
func (c Classification) Readable() bool { return !c.LoadOnly }

// Writable reports whether the field is accepted by load.
func (c Classification) Writable() bool { return !c.DumpOnly }

// Classify decides the direction of f. Primary keys and server-maintained
// columns are read-only; everything else is read-write unless the catalog marks
// it load-only.
func Classify(f *catalog.Field) Classification {
	return Classification{
		DumpOnly: IsReadOnly(f),
		LoadOnly: f.LoadOnly,
	}
}

// IsReadOnly reports whether f is a primary key or filled by the server.
func IsReadOnly(f *catalog.Field) bool {
	return f.PrimaryKey || f.ServerMaintained
}

// isRequired reports whether f must be present on a full (non-partial) load.
func isRequired(f *catalog.Field) bool {
	return !IsReadOnly(f) && !f.IsRelation() && !f.Nullable && !f.HasDefault
}
