package resource

import (
	"reflect"
	"slices"
	"time"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/shopspring/decimal"
)

// Schema is the load/dump shape derived from an entity. It is built once at
// startup and is safe for concurrent use.
type Schema struct {
	entity  *catalog.Entity
	classes map[string]Classification
	// related holds the schemas of relation targets, used to dump embedded
	// records. It may be empty.
	related map[string]*Schema
}

// FieldDescriptor describes one field for introspection.
type FieldDescriptor struct {
	Label    *string `json:"label"`
	Type     string  `json:"type"`
	Required bool    `json:"required"`
	Readable bool    `json:"readable"`
	Writable bool    `json:"writable"`
	Many     *bool   `json:"many,omitempty"`
}

// keys of related entities are integers
var keyField = &catalog.Field{Name: "id", Type: catalog.Integer}

// Derive builds the schema of e.
func Derive(e *catalog.Entity) *Schema {
	s := &Schema{
		entity:  e,
		classes: make(map[string]Classification, len(e.Fields)),
		related: make(map[string]*Schema),
	}
	for _, f := range e.Fields {
		s.classes[f.Name] = Classify(f)
	}
	return s
}

// DeriveCatalog derives the schema of every entity in c and links relation
// targets so that embedded records dump with their own shape.
func DeriveCatalog(c *catalog.Catalog) map[string]*Schema {
	schemas := make(map[string]*Schema)
	for _, e := range c.Entities() {
		schemas[e.Name] = Derive(e)
	}
	for _, s := range schemas {
		for _, f := range s.entity.Relations() {
			if target, ok := schemas[f.Relation.Target]; ok {
				s.related[f.Relation.Target] = target
			}
		}
	}
	return schemas
}

// Classify returns the classification of the named field.
func (s *Schema) Classify(name string) (Classification, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Load validates raw and applies it on top of existing, or on a new record when
// existing is nil. existing is never modified. With partial set, missing
// required fields are not reported. Errors of all fields are collected into a
// single *ValidationError.
func (s *Schema) Load(raw map[string]any, existing catalog.Record, partial bool) (catalog.Record, error) {
	var out catalog.Record
	if existing != nil {
		out = existing.Clone()
	} else {
		out = make(catalog.Record)
	}

	// a foreign key may be given through its belongs-to relation
	viaRelation := make(map[string]bool)
	for _, f := range s.entity.Relations() {
		if _, ok := raw[f.Name]; ok && f.Kind() == catalog.BelongsTo {
			viaRelation[f.Relation.Column] = true
		}
	}

	ve := &ValidationError{}
	for _, f := range s.entity.Fields {
		if s.classes[f.Name].DumpOnly {
			// read-only input is ignored, not rejected
			continue
		}
		v, present := raw[f.Name]
		if !present {
			if !partial && isRequired(f) && !viaRelation[f.Name] {
				ve.add(f.Name, msgRequired)
			}
			continue
		}

		switch f.Kind() {
		case catalog.None:
			val, msgs := coerce(f, v)
			if len(msgs) > 0 {
				ve.add(f.Name, msgs...)
				continue
			}
			out[f.Name] = val
		case catalog.BelongsTo:
			column, _ := s.entity.Field(f.Relation.Column)
			key, msgs := loadKey(v, column.Nullable)
			if len(msgs) > 0 {
				ve.add(f.Name, msgs...)
				continue
			}
			out[column.Name] = key
			// an embedded record would be stale now
			delete(out, f.Name)
		case catalog.HasMany, catalog.ManyToMany:
			keys, msgs := loadKeys(v)
			if len(msgs) > 0 {
				ve.add(f.Name, msgs...)
				continue
			}
			out[f.Name] = keys
		}
	}

	if ve.HasErrors() {
		return nil, ve
	}
	return out, nil
}

// loadKey accepts a key or an embedded object carrying "id".
func loadKey(v any, nullable bool) (any, []string) {
	if m, ok := v.(map[string]any); ok {
		id, ok := m[keyField.Name]
		if !ok {
			return nil, []string{msgRequired}
		}
		v = id
	}
	if v == nil {
		if nullable {
			return nil, nil
		}
		return nil, []string{msgNull}
	}
	return coerce(keyField, v)
}

func loadKeys(v any) ([]any, []string) {
	if v == nil {
		return []any{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, []string{msgList}
	}
	keys := make([]any, 0, len(items))
	var msgs []string
	for _, item := range items {
		key, errs := loadKey(item, false)
		if len(errs) > 0 {
			msgs = append(msgs, errs...)
			continue
		}
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	if len(msgs) > 0 {
		return nil, msgs
	}
	return keys, nil
}

// Dump projects value for output. value is a catalog.Record, or a
// []catalog.Record when many is set. Collection relations are left out when
// dumping many records.
func (s *Schema) Dump(value any, many bool) any {
	if !many {
		rec, _ := value.(catalog.Record)
		if rec == nil {
			return nil
		}
		return s.dumpOne(rec, false)
	}

	recs, _ := value.([]catalog.Record)
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.dumpOne(rec, true))
	}
	return out
}

func (s *Schema) dumpOne(rec catalog.Record, many bool) map[string]any {
	out := make(map[string]any, len(s.entity.Fields))
	for _, f := range s.entity.Fields {
		if s.classes[f.Name].LoadOnly {
			continue
		}
		kind := f.Kind()
		if many && kind.IsCollection() {
			continue
		}

		v, present := rec[f.Name]
		switch kind {
		case catalog.None:
			out[f.Name] = dumpValue(f, v)
		case catalog.BelongsTo:
			if !present {
				continue
			}
			nested, _ := v.(catalog.Record)
			if nested == nil {
				out[f.Name] = nil
				continue
			}
			if target, ok := s.related[f.Relation.Target]; ok {
				out[f.Name] = target.dumpOne(nested, true)
			} else {
				out[f.Name] = map[string]any(nested)
			}
		default:
			if !present {
				continue
			}
			keys, _ := v.([]any)
			if keys == nil {
				keys = []any{}
			}
			out[f.Name] = keys
		}
	}
	return out
}

// Describe reports every field of the entity for introspection.
func (s *Schema) Describe() map[string]FieldDescriptor {
	out := make(map[string]FieldDescriptor, len(s.entity.Fields))
	for _, f := range s.entity.Fields {
		c := s.classes[f.Name]
		d := FieldDescriptor{
			Type:     typeName(f.Type),
			Required: isRequired(f),
			Readable: c.Readable(),
			Writable: c.Writable(),
		}
		if f.Label != "" {
			label := f.Label
			d.Label = &label
		}
		if f.IsRelation() {
			many := f.Kind().IsCollection()
			d.Many = &many
		}
		out[f.Name] = d
	}
	return out
}

func typeName(t catalog.Type) string {
	switch t {
	case catalog.SmallInteger:
		return string(catalog.Integer)
	case catalog.Text:
		return string(catalog.String)
	}
	return string(t)
}

// Delta returns the writable values of after that differ from before. Scalar
// fields are keyed by field name, collection relations by relation name.
func (s *Schema) Delta(before, after catalog.Record) catalog.Record {
	changes := make(catalog.Record)
	for _, f := range s.entity.Fields {
		if s.classes[f.Name].DumpOnly || f.Kind() == catalog.BelongsTo {
			continue
		}
		v, ok := after[f.Name]
		if !ok {
			continue
		}
		old, had := before[f.Name]
		if f.Kind().IsCollection() {
			if !had || !sameKeys(old, v) {
				changes[f.Name] = v
			}
			continue
		}
		if !had || !sameValue(old, v) {
			changes[f.Name] = v
		}
	}
	return changes
}

func sameValue(a, b any) bool {
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func sameKeys(a, b any) bool {
	x, _ := a.([]any)
	y, _ := b.([]any)
	if len(x) != len(y) {
		return false
	}
	for _, k := range x {
		if !slices.Contains(y, k) {
			return false
		}
	}
	return true
}
