// Package catalog declares the entities exposed as REST resources.
//
// A catalog is built once at process start and treated as immutable
// configuration afterwards. Each Entity maps to one table with a single-column
// primary key and lists its fields in declaration order. Fields carry their
// semantic type, nullability, defaults and, for relation fields, how the
// relation is stored.
package catalog

import "fmt"

// Type is the semantic type of a field.
type Type string

const (
	Integer      Type = "integer"
	SmallInteger Type = "smallinteger"
	String       Type = "string"
	Text         Type = "text"
	Numeric      Type = "decimal"
	DateTime     Type = "datetime"
	Boolean      Type = "boolean"
	Enum         Type = "enum"
	Relation     Type = "related"
)

// RelationKind tells how a relation field refers to its target entity.
type RelationKind int

const (
	None RelationKind = iota
	BelongsTo
	HasMany
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasMany:
		return "has_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "none"
	}
}

// IsCollection reports whether the relation holds many target entities.
func (k RelationKind) IsCollection() bool {
	return k == HasMany || k == ManyToMany
}

// RelationSpec describes how a relation field is stored.
type RelationSpec struct {
	Kind RelationKind
	// Target is the name of the related entity.
	Target string
	// Column is the local foreign key field (BelongsTo).
	Column string
	// RemoteColumn is the foreign key column on the target table (HasMany).
	RemoteColumn string
	// JoinTable, JoinColumn and JoinTargetColumn describe the association
	// table of a ManyToMany relation.
	JoinTable        string
	JoinColumn       string
	JoinTargetColumn string
}

// Field is a named, typed attribute of an entity.
type Field struct {
	Name string
	// Column defaults to Name.
	Column    string
	Type      Type
	MaxLength int
	Precision int
	Scale     int
	Enum      *EnumType
	Nullable  bool
	// HasDefault marks columns the database fills when omitted on insert.
	HasDefault bool
	PrimaryKey bool
	// ServerMaintained marks columns such as last_update that are set on
	// every insert and update.
	ServerMaintained bool
	// LoadOnly fields are accepted on input but never emitted.
	LoadOnly bool
	Label    string
	Relation *RelationSpec
}

// ColumnName returns the table column backing the field.
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Kind returns the relation kind, None for scalar fields.
func (f *Field) Kind() RelationKind {
	if f.Relation == nil {
		return None
	}
	return f.Relation.Kind
}

// IsRelation reports whether the field refers to another entity.
func (f *Field) IsRelation() bool {
	return f.Kind() != None
}

// Entity is a relational record type exposed as a REST resource.
type Entity struct {
	Name     string
	Singular string
	Plural   string
	// Path is the collection path segment, e.g. "actors".
	Path   string
	Table  string
	Fields []*Field

	byName map[string]*Field
}

// Field looks up a field by name.
func (e *Entity) Field(name string) (*Field, bool) {
	if e.byName == nil {
		e.index()
	}
	f, ok := e.byName[name]
	return f, ok
}

// PrimaryKey returns the primary key field. Catalog.Validate guarantees there
// is exactly one.
func (e *Entity) PrimaryKey() *Field {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// Columns returns the scalar (column-backed) fields in declaration order.
func (e *Entity) Columns() []*Field {
	cols := make([]*Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		if !f.IsRelation() {
			cols = append(cols, f)
		}
	}
	return cols
}

// Relations returns the relation fields in declaration order.
func (e *Entity) Relations() []*Field {
	var rels []*Field
	for _, f := range e.Fields {
		if f.IsRelation() {
			rels = append(rels, f)
		}
	}
	return rels
}

func (e *Entity) index() {
	e.byName = make(map[string]*Field, len(e.Fields))
	for _, f := range e.Fields {
		e.byName[f.Name] = f
	}
}

func (e *Entity) validate() error {
	e.index()
	if len(e.byName) != len(e.Fields) {
		return fmt.Errorf("entity %s: duplicate field names", e.Name)
	}
	if e.Table == "" {
		return fmt.Errorf("entity %s: table name required", e.Name)
	}

	pks := 0
	for _, f := range e.Fields {
		if f.PrimaryKey {
			pks++
			if f.IsRelation() {
				return fmt.Errorf("entity %s: relation %s cannot be the primary key", e.Name, f.Name)
			}
		}
		if f.Type == Enum && f.Enum == nil {
			return fmt.Errorf("entity %s: enum field %s has no enum type", e.Name, f.Name)
		}
		if f.Type == Relation && f.Relation == nil {
			return fmt.Errorf("entity %s: relation field %s has no relation spec", e.Name, f.Name)
		}
		if f.Kind() == BelongsTo {
			col, ok := e.byName[f.Relation.Column]
			if !ok || col.IsRelation() {
				return fmt.Errorf("entity %s: relation %s refers to unknown column field %q", e.Name, f.Name, f.Relation.Column)
			}
		}
	}
	// composite keys are not supported
	if pks != 1 {
		return fmt.Errorf("entity %s: expected exactly one primary key field, got %d", e.Name, pks)
	}
	return nil
}

// Record is one entity instance keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
