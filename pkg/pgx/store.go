package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/jackc/pgx/v5"
)

// ErrNoRowsUpdated is returned by Update when the row is gone.
var ErrNoRowsUpdated = errors.New("no rows were updated")

// Store reads and writes catalog entities through conn. Bound to a pgx.Tx it
// is the unit of work of one request; it is not safe for concurrent use.
type Store struct {
	conn   Conn
	schema string
}

// NewStore returns a Store over conn. Tables are qualified with schema unless
// it is empty, in which case the connection's search_path applies.
func NewStore(conn Conn, schema string) *Store {
	return &Store{conn: conn, schema: schema}
}

func (s *Store) builder(table string) *queryBuilder {
	return newQueryBuilder(table, s.schema)
}

// Select returns one page of e's rows.
func (s *Store) Select(ctx context.Context, e *catalog.Entity, q catalog.Query) ([]catalog.Record, error) {
	qb := s.builder(e.Table)
	sql := qb.selectSQL(e, "", &q, false)
	return s.query(ctx, e, sql, qb.values...)
}

// Get returns the row with primary key id, or nil when there is none. With
// forUpdate the row is locked until the transaction ends.
func (s *Store) Get(ctx context.Context, e *catalog.Entity, id any, forUpdate bool) (catalog.Record, error) {
	qb := s.builder(e.Table)
	where := column(e.PrimaryKey()) + " = " + qb.bind(id)
	recs, err := s.query(ctx, e, qb.selectSQL(e, where, nil, forUpdate), qb.values...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// GetMany returns the rows whose primary key is one of ids.
func (s *Store) GetMany(ctx context.Context, e *catalog.Entity, ids []any) ([]catalog.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys, err := int64Keys(ids)
	if err != nil {
		return nil, err
	}
	qb := s.builder(e.Table)
	where := column(e.PrimaryKey()) + " = ANY(" + qb.bind(keys) + ")"
	return s.query(ctx, e, qb.selectSQL(e, where, nil, false), qb.values...)
}

// Insert stores the column fields of rec and returns the generated primary
// key.
func (s *Store) Insert(ctx context.Context, e *catalog.Entity, rec catalog.Record) (any, error) {
	qb := s.builder(e.Table)
	sql := qb.insertSQL(e, rec)

	var id any
	if err := s.conn.QueryRow(ctx, sql, qb.values...).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", e.Table, err)
	}
	return normalize(e.PrimaryKey(), id)
}

// Update writes changes to the row with primary key id.
func (s *Store) Update(ctx context.Context, e *catalog.Entity, id any, changes catalog.Record) error {
	qb := s.builder(e.Table)
	sql := qb.updateSQL(e, id, changes)
	if sql == "" {
		return nil
	}

	result, err := s.conn.Exec(ctx, sql, qb.values...)
	if err != nil {
		return fmt.Errorf("update %s: %w", e.Table, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// Delete removes the row with primary key id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, e *catalog.Entity, id any) (bool, error) {
	qb := s.builder(e.Table)
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", qb.tableIdentifier(), column(e.PrimaryKey()), qb.bind(id))

	result, err := s.conn.Exec(ctx, sql, qb.values...)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", e.Table, err)
	}
	return result.RowsAffected() > 0, nil
}

// RelatedKeys returns the primary keys of target rows linked to id through
// the collection relation rel, in ascending order.
func (s *Store) RelatedKeys(ctx context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any) ([]any, error) {
	var sql string
	var qb *queryBuilder
	switch rel.Kind() {
	case catalog.HasMany:
		qb = s.builder(target.Table)
		pk := column(target.PrimaryKey())
		sql = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
			pk, qb.tableIdentifier(), pgx.Identifier{rel.Relation.RemoteColumn}.Sanitize(), qb.bind(id), pk)
	case catalog.ManyToMany:
		qb = s.builder(rel.Relation.JoinTable)
		col := pgx.Identifier{rel.Relation.JoinTargetColumn}.Sanitize()
		sql = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
			col, qb.tableIdentifier(), pgx.Identifier{rel.Relation.JoinColumn}.Sanitize(), qb.bind(id), col)
	default:
		return nil, fmt.Errorf("%s.%s is not a collection relation", e.Name, rel.Name)
	}

	rows, err := s.conn.Query(ctx, sql, qb.values...)
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", e.Name, rel.Name, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[any])
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", e.Name, rel.Name, err)
	}

	pk := target.PrimaryKey()
	keys := make([]any, 0, len(values))
	for _, v := range values {
		k, err := normalize(pk, v)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// SetRelated links keys to id through the collection relation rel. The join
// rows of a many-to-many relation are replaced. Has-many targets listed in
// keys are attached to id; others are left untouched.
func (s *Store) SetRelated(ctx context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any, keys []any) error {
	switch rel.Kind() {
	case catalog.ManyToMany:
		if err := s.ClearRelated(ctx, e, rel, id); err != nil {
			return err
		}
		qb := s.builder(rel.Relation.JoinTable)
		sql := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2)",
			qb.tableIdentifier(),
			pgx.Identifier{rel.Relation.JoinColumn}.Sanitize(),
			pgx.Identifier{rel.Relation.JoinTargetColumn}.Sanitize())
		for _, k := range keys {
			if _, err := s.conn.Exec(ctx, sql, id, k); err != nil {
				return fmt.Errorf("link %s.%s: %w", e.Name, rel.Name, err)
			}
		}
		return nil

	case catalog.HasMany:
		if len(keys) == 0 {
			return nil
		}
		ids, err := int64Keys(keys)
		if err != nil {
			return err
		}
		qb := s.builder(target.Table)
		sql := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = ANY(%s)",
			qb.tableIdentifier(),
			pgx.Identifier{rel.Relation.RemoteColumn}.Sanitize(), qb.bind(id),
			column(target.PrimaryKey()), qb.bind(ids))
		if _, err := s.conn.Exec(ctx, sql, qb.values...); err != nil {
			return fmt.Errorf("attach %s.%s: %w", e.Name, rel.Name, err)
		}
		return nil
	}
	return fmt.Errorf("%s.%s is not a collection relation", e.Name, rel.Name)
}

// ClearRelated removes every join row of a many-to-many relation for id.
func (s *Store) ClearRelated(ctx context.Context, e *catalog.Entity, rel *catalog.Field, id any) error {
	if rel.Kind() != catalog.ManyToMany {
		return fmt.Errorf("%s.%s is not a many-to-many relation", e.Name, rel.Name)
	}
	qb := s.builder(rel.Relation.JoinTable)
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		qb.tableIdentifier(), pgx.Identifier{rel.Relation.JoinColumn}.Sanitize(), qb.bind(id))
	if _, err := s.conn.Exec(ctx, sql, qb.values...); err != nil {
		return fmt.Errorf("unlink %s.%s: %w", e.Name, rel.Name, err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, e *catalog.Entity, sql string, args ...any) ([]catalog.Record, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", e.Table, err)
	}
	defer rows.Close()

	cols := e.Columns()
	var recs []catalog.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", e.Table, err)
		}
		rec := make(catalog.Record, len(cols))
		for i, f := range cols {
			v, err := normalize(f, values[i])
			if err != nil {
				return nil, fmt.Errorf("scan %s.%s: %w", e.Table, f.Name, err)
			}
			rec[f.Name] = v
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", e.Table, err)
	}
	return recs, nil
}
