// Package memstore is an in-memory resource.Store for tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/shopspring/decimal"
)

// Store keeps rows per table. The zero value is not usable; use New.
type Store struct {
	// Fail, when set, is consulted before every write with the operation
	// name ("insert", "update", "delete", "link") and the table.
	Fail func(op, table string) error

	mu     sync.Mutex
	tables map[string]map[int64]catalog.Record
	joins  map[string][]map[string]int64
	seq    map[string]int64
	now    func() time.Time
}

func New() *Store {
	return &Store{
		tables: make(map[string]map[int64]catalog.Record),
		joins:  make(map[string][]map[string]int64),
		seq:    make(map[string]int64),
		now:    time.Now,
	}
}

// Put stores rec as is, keyed by the value of e's primary key.
func (s *Store) Put(e *catalog.Entity, rec catalog.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := rec[e.PrimaryKey().Name].(int64)
	s.table(e.Table)[id] = rec.Clone()
	s.seq[e.Table] = max(s.seq[e.Table], id)
}

// Link adds a join table row.
func (s *Store) Link(table string, row map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins[table] = append(s.joins[table], row)
}

// Row returns a copy of the stored row, or nil.
func (s *Store) Row(e *catalog.Entity, id int64) catalog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.table(e.Table)[id]; ok {
		return rec.Clone()
	}
	return nil
}

// Len returns the number of rows of e.
func (s *Store) Len(e *catalog.Entity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table(e.Table))
}

// Joins returns the rows of a join table.
func (s *Store) Joins(table string) []map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.joins[table])
}

func (s *Store) table(name string) map[int64]catalog.Record {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[int64]catalog.Record)
		s.tables[name] = t
	}
	return t
}

func (s *Store) fail(op, table string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, table)
}

func key(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	}
	return 0, fmt.Errorf("memstore: key %v (%T) is not an int64", v, v)
}

func (s *Store) Select(_ context.Context, e *catalog.Entity, q catalog.Query) ([]catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := e.PrimaryKey().Name
	rows := make([]catalog.Record, 0, len(s.table(e.Table)))
	for _, rec := range s.table(e.Table) {
		rows = append(rows, rec.Clone())
	}
	slices.SortFunc(rows, func(a, b catalog.Record) int {
		for _, o := range q.Order {
			c := compare(a[o.Field.Name], b[o.Field.Name])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return compare(a[pk], b[pk])
	})

	if q.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[q.Offset:]
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// compare orders nil last, as PostgreSQL does for ascending sorts. Reversed
// for descending sorts it puts nil first, again matching PostgreSQL.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case int64:
		return cmp.Compare(x, b.(int64))
	case string:
		return strings.Compare(x, b.(string))
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	case time.Time:
		return x.Compare(b.(time.Time))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func (s *Store) Get(_ context.Context, e *catalog.Entity, id any, _ bool) (catalog.Record, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.table(e.Table)[k]; ok {
		return rec.Clone(), nil
	}
	return nil, nil
}

func (s *Store) GetMany(_ context.Context, e *catalog.Entity, ids []any) ([]catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Record
	seen := make(map[int64]bool)
	for _, id := range ids {
		k, err := key(id)
		if err != nil {
			return nil, err
		}
		if rec, ok := s.table(e.Table)[k]; ok && !seen[k] {
			seen[k] = true
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *Store) Insert(_ context.Context, e *catalog.Entity, rec catalog.Record) (any, error) {
	if err := s.fail("insert", e.Table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[e.Table]++
	id := s.seq[e.Table]
	row := make(catalog.Record)
	for _, f := range e.Columns() {
		switch {
		case f.PrimaryKey:
			row[f.Name] = id
		case f.ServerMaintained:
			row[f.Name] = s.now()
		default:
			row[f.Name] = rec[f.Name]
		}
	}
	s.table(e.Table)[id] = row
	return id, nil
}

func (s *Store) Update(_ context.Context, e *catalog.Entity, id any, changes catalog.Record) error {
	if err := s.fail("update", e.Table); err != nil {
		return err
	}
	k, err := key(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.table(e.Table)[k]
	if !ok {
		return fmt.Errorf("memstore: %s %d not found", e.Table, k)
	}
	for _, f := range e.Columns() {
		if f.ServerMaintained {
			row[f.Name] = s.now()
			continue
		}
		if v, ok := changes[f.Name]; ok && !f.PrimaryKey {
			row[f.Name] = v
		}
	}
	return nil
}

func (s *Store) Delete(_ context.Context, e *catalog.Entity, id any) (bool, error) {
	if err := s.fail("delete", e.Table); err != nil {
		return false, err
	}
	k, err := key(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(e.Table)
	if _, ok := t[k]; !ok {
		return false, nil
	}
	delete(t, k)
	return true, nil
}

func (s *Store) RelatedKeys(_ context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any) ([]any, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []int64
	switch rel.Kind() {
	case catalog.HasMany:
		remote := fieldByColumn(target, rel.Relation.RemoteColumn)
		if remote == nil {
			return nil, fmt.Errorf("memstore: %s has no column %s", target.Name, rel.Relation.RemoteColumn)
		}
		for tid, row := range s.table(target.Table) {
			if row[remote.Name] == k {
				keys = append(keys, tid)
			}
		}
	case catalog.ManyToMany:
		for _, row := range s.joins[rel.Relation.JoinTable] {
			if row[rel.Relation.JoinColumn] == k {
				keys = append(keys, row[rel.Relation.JoinTargetColumn])
			}
		}
	default:
		return nil, fmt.Errorf("memstore: %s is not a collection", rel.Name)
	}

	slices.Sort(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out, nil
}

func (s *Store) SetRelated(_ context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any, keys []any) error {
	if err := s.fail("link", e.Table); err != nil {
		return err
	}
	k, err := key(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch rel.Kind() {
	case catalog.HasMany:
		remote := fieldByColumn(target, rel.Relation.RemoteColumn)
		if remote == nil {
			return fmt.Errorf("memstore: %s has no column %s", target.Name, rel.Relation.RemoteColumn)
		}
		for _, tk := range keys {
			tid, err := key(tk)
			if err != nil {
				return err
			}
			if row, ok := s.table(target.Table)[tid]; ok {
				row[remote.Name] = k
			}
		}
	case catalog.ManyToMany:
		jt := rel.Relation.JoinTable
		s.joins[jt] = slices.DeleteFunc(s.joins[jt], func(row map[string]int64) bool {
			return row[rel.Relation.JoinColumn] == k
		})
		for _, tk := range keys {
			tid, err := key(tk)
			if err != nil {
				return err
			}
			if _, ok := s.table(target.Table)[tid]; !ok {
				return fmt.Errorf("memstore: foreign key violation on %s: %s %d", jt, target.Table, tid)
			}
			s.joins[jt] = append(s.joins[jt], map[string]int64{
				rel.Relation.JoinColumn:       k,
				rel.Relation.JoinTargetColumn: tid,
			})
		}
	}
	return nil
}

func fieldByColumn(e *catalog.Entity, column string) *catalog.Field {
	for _, f := range e.Columns() {
		if f.ColumnName() == column {
			return f
		}
	}
	return nil
}
