package pgx

import (
	"testing"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/catalog/sakila"
	"github.com/stretchr/testify/assert"
)

func TestSelectSQL(t *testing.T) {
	actor := sakila.Actor()
	lastName := actor.Fields[2]

	tests := []struct {
		name     string
		where    string
		query    *catalog.Query
		lock     bool
		expected string
		args     []any
	}{
		{
			name:     "page ordered by primary key",
			query:    &catalog.Query{Limit: 10},
			expected: `SELECT "actor_id", "first_name", "last_name", "last_update" FROM "public"."actor" ORDER BY "actor_id" ASC LIMIT $1`,
			args:     []any{10},
		},
		{
			name:     "sorted with tiebreaker and offset",
			query:    &catalog.Query{Order: []catalog.Order{{Field: lastName, Desc: true}}, Limit: 5, Offset: 10},
			expected: `SELECT "actor_id", "first_name", "last_name", "last_update" FROM "public"."actor" ORDER BY "last_name" DESC, "actor_id" ASC LIMIT $1 OFFSET $2`,
			args:     []any{5, 10},
		},
		{
			name:     "primary key sort is not repeated",
			query:    &catalog.Query{Order: []catalog.Order{{Field: actor.PrimaryKey(), Desc: true}}},
			expected: `SELECT "actor_id", "first_name", "last_name", "last_update" FROM "public"."actor" ORDER BY "actor_id" DESC`,
		},
		{
			name:     "locked row",
			where:    `"actor_id" = $1`,
			lock:     true,
			expected: `SELECT "actor_id", "first_name", "last_name", "last_update" FROM "public"."actor" WHERE "actor_id" = $1 FOR UPDATE`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := newQueryBuilder(actor.Table, "public")
			assert.Equal(t, tt.expected, qb.selectSQL(actor, tt.where, tt.query, tt.lock))
			assert.Equal(t, tt.args, qb.values)
		})
	}
}

func TestInsertSQL(t *testing.T) {
	actor := sakila.Actor()

	qb := newQueryBuilder(actor.Table, "")
	sql := qb.insertSQL(actor, catalog.Record{"first_name": "PENELOPE", "last_name": "GUINESS", "films": []any{int64(1)}})
	assert.Equal(t, `INSERT INTO "actor" ("first_name", "last_name") VALUES ($1, $2) RETURNING "actor_id"`, sql)
	assert.Equal(t, []any{"PENELOPE", "GUINESS"}, qb.values)

	qb = newQueryBuilder(actor.Table, "")
	assert.Equal(t, `INSERT INTO "actor" DEFAULT VALUES RETURNING "actor_id"`, qb.insertSQL(actor, catalog.Record{}))
}

func TestUpdateSQL(t *testing.T) {
	actor := sakila.Actor()

	qb := newQueryBuilder(actor.Table, "public")
	sql := qb.updateSQL(actor, int64(3), catalog.Record{"last_name": "CHASE", "id": int64(9)})
	assert.Equal(t, `UPDATE "public"."actor" SET "last_name" = $1, "last_update" = now() WHERE "actor_id" = $2`, sql)
	assert.Equal(t, []any{"CHASE", int64(3)}, qb.values)

	country := &catalog.Entity{Name: "thing", Table: "thing", Fields: []*catalog.Field{
		{Name: "id", Type: catalog.Integer, PrimaryKey: true},
		{Name: "name", Type: catalog.String},
	}}
	qb = newQueryBuilder(country.Table, "")
	assert.Empty(t, qb.updateSQL(country, int64(1), catalog.Record{}))
}
