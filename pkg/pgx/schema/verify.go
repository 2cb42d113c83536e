package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edgeflare/restable/pkg/catalog"
)

// Problem is one disagreement between the catalog and the database.
// Type mismatches are reported as warnings; everything else would make
// requests fail.
type Problem struct {
	Entity  string
	Field   string
	Message string
	Warning bool
}

func (p Problem) String() string {
	if p.Field == "" {
		return fmt.Sprintf("%s: %s", p.Entity, p.Message)
	}
	return fmt.Sprintf("%s.%s: %s", p.Entity, p.Field, p.Message)
}

// Verify checks every entity of c against tables as returned by Load.
func Verify(c *catalog.Catalog, tables map[string]Table) []Problem {
	var problems []Problem
	for _, e := range c.Entities() {
		problems = append(problems, verifyEntity(c, e, tables)...)
	}
	return problems
}

// Err joins the fatal problems into one error, nil when there are none.
func Err(problems []Problem) error {
	var errs []error
	for _, p := range problems {
		if !p.Warning {
			errs = append(errs, errors.New(p.String()))
		}
	}
	return errors.Join(errs...)
}

func verifyEntity(c *catalog.Catalog, e *catalog.Entity, tables map[string]Table) []Problem {
	t, ok := tables[e.Table]
	if !ok {
		return []Problem{{Entity: e.Name, Message: fmt.Sprintf("table %q not found", e.Table)}}
	}

	var problems []Problem
	report := func(f *catalog.Field, warning bool, format string, args ...any) {
		problems = append(problems, Problem{Entity: e.Name, Field: f.Name, Message: fmt.Sprintf(format, args...), Warning: warning})
	}

	for _, f := range e.Columns() {
		col, ok := t.Column(f.ColumnName())
		if !ok {
			report(f, false, "column %q not found in %s", f.ColumnName(), e.Table)
			continue
		}
		if f.PrimaryKey && len(t.PrimaryKeys) > 0 && (len(t.PrimaryKeys) != 1 || t.PrimaryKeys[0] != col.Name) {
			report(f, false, "primary key of %s is (%s)", e.Table, strings.Join(t.PrimaryKeys, ", "))
		}
		if !compatible(f.Type, col.DataType) {
			report(f, true, "%s column has type %q", f.Type, col.DataType)
		}
		if !f.Nullable && !f.PrimaryKey && col.IsNullable {
			report(f, true, "column %q is nullable", col.Name)
		}
	}

	for _, f := range e.Relations() {
		target, err := c.Entity(f.Relation.Target)
		if err != nil {
			report(f, false, "unknown target %q", f.Relation.Target)
			continue
		}
		switch f.Kind() {
		case catalog.HasMany:
			tt, ok := tables[target.Table]
			if !ok {
				continue // reported with the target entity
			}
			if _, ok := tt.Column(f.Relation.RemoteColumn); !ok {
				report(f, false, "column %q not found in %s", f.Relation.RemoteColumn, target.Table)
			}
		case catalog.ManyToMany:
			jt, ok := tables[f.Relation.JoinTable]
			if !ok {
				report(f, false, "join table %q not found", f.Relation.JoinTable)
				continue
			}
			for _, name := range []string{f.Relation.JoinColumn, f.Relation.JoinTargetColumn} {
				if _, ok := jt.Column(name); !ok {
					report(f, false, "column %q not found in %s", name, jt.Name)
				}
			}
		}
	}
	return problems
}

// compatible reports whether a column of information_schema dataType can hold
// values of type t.
func compatible(t catalog.Type, dataType string) bool {
	switch t {
	case catalog.Integer, catalog.SmallInteger:
		return dataType == "integer" || dataType == "smallint" || dataType == "bigint"
	case catalog.String, catalog.Text:
		return dataType == "text" || dataType == "character varying" || dataType == "character"
	case catalog.Numeric:
		return dataType == "numeric"
	case catalog.DateTime:
		return strings.HasPrefix(dataType, "timestamp") || dataType == "date"
	case catalog.Boolean:
		return dataType == "boolean"
	case catalog.Enum:
		return dataType == "USER-DEFINED" || dataType == "text" || dataType == "character varying"
	}
	return true
}
