package pgx

import (
	"fmt"
	"strings"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/jackc/pgx/v5"
)

type queryBuilder struct {
	schema    string
	table     string
	values    []any
	nextIndex int
}

func newQueryBuilder(tableName string, schema string) *queryBuilder {
	return &queryBuilder{
		schema:    schema,
		table:     tableName,
		nextIndex: 1,
	}
}

// bind appends value to the arguments and returns its placeholder.
func (qb *queryBuilder) bind(value any) string {
	qb.values = append(qb.values, value)
	placeholder := fmt.Sprintf("$%d", qb.nextIndex)
	qb.nextIndex++
	return placeholder
}

func (qb *queryBuilder) tableIdentifier() string {
	if qb.schema == "" {
		return pgx.Identifier{qb.table}.Sanitize()
	}
	return pgx.Identifier{qb.schema, qb.table}.Sanitize()
}

func column(f *catalog.Field) string {
	return pgx.Identifier{f.ColumnName()}.Sanitize()
}

func columnList(fields []*catalog.Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = column(f)
	}
	return strings.Join(cols, ", ")
}

// selectSQL builds the SELECT of e's columns filtered by where. Ordering and
// paging come from q, which may be nil.
func (qb *queryBuilder) selectSQL(e *catalog.Entity, where string, q *catalog.Query, forUpdate bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columnList(e.Columns()), qb.tableIdentifier())
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if q != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy(e, q.Order))
		if q.Limit > 0 {
			sb.WriteString(" LIMIT ")
			sb.WriteString(qb.bind(q.Limit))
		}
		if q.Offset > 0 {
			sb.WriteString(" OFFSET ")
			sb.WriteString(qb.bind(q.Offset))
		}
	}
	if forUpdate {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String()
}

// orderBy renders the ORDER BY list, ending with the primary key unless it is
// already sorted on.
func orderBy(e *catalog.Entity, order []catalog.Order) string {
	pk := e.PrimaryKey()
	clauses := make([]string, 0, len(order)+1)
	hasPK := false
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		clauses = append(clauses, column(o.Field)+" "+dir)
		if o.Field == pk {
			hasPK = true
		}
	}
	if !hasPK {
		clauses = append(clauses, column(pk)+" ASC")
	}
	return strings.Join(clauses, ", ")
}

// insertSQL inserts the column fields present in rec and returns the primary
// key.
func (qb *queryBuilder) insertSQL(e *catalog.Entity, rec catalog.Record) string {
	var columns, placeholders []string
	for _, f := range e.Columns() {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		columns = append(columns, column(f))
		placeholders = append(placeholders, qb.bind(v))
	}

	returning := column(e.PrimaryKey())
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", qb.tableIdentifier(), returning)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		qb.tableIdentifier(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		returning,
	)
}

// updateSQL sets the changed columns and refreshes server-maintained ones.
// It returns "" when there is nothing to set.
func (qb *queryBuilder) updateSQL(e *catalog.Entity, id any, changes catalog.Record) string {
	var setClauses []string
	for _, f := range e.Columns() {
		if f.ServerMaintained {
			setClauses = append(setClauses, column(f)+" = now()")
			continue
		}
		v, ok := changes[f.Name]
		if !ok || f.PrimaryKey {
			continue
		}
		setClauses = append(setClauses, column(f)+" = "+qb.bind(v))
	}
	if len(setClauses) == 0 {
		return ""
	}

	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = %s",
		qb.tableIdentifier(),
		strings.Join(setClauses, ", "),
		column(e.PrimaryKey()),
		qb.bind(id),
	)
}
