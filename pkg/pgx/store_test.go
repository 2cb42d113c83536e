package pgx

import (
	"context"
	"testing"
	"time"

	"github.com/edgeflare/restable/internal/testutil/pgtest"
	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/catalog/sakila"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pool   *pgxpool.Pool
	schema string
	cat    *catalog.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	pool, schema := pgtest.Sakila(ctx, t)
	cat, err := sakila.New()
	require.NoError(t, err)
	return &fixture{pool: pool, schema: schema, cat: cat}
}

func (f *fixture) entity(t *testing.T, name string) *catalog.Entity {
	e, err := f.cat.Entity(name)
	require.NoError(t, err)
	return e
}

// inTx runs fn against a Store bound to a transaction that is rolled back
// afterwards.
func (f *fixture) inTx(t *testing.T, fn func(ctx context.Context, s *Store)) {
	ctx := context.Background()
	tx, err := f.pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	fn(ctx, NewStore(tx, f.schema))
}

func TestStore(t *testing.T) {
	f := newFixture(t)
	film := f.entity(t, "film")
	actor := f.entity(t, "actor")
	language := f.entity(t, "language")

	t.Run("Select pages in primary key order", func(t *testing.T) {
		f.inTx(t, func(ctx context.Context, s *Store) {
			recs, err := s.Select(ctx, film, catalog.Query{Limit: 2})
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, int64(1), recs[0]["id"])
			assert.Equal(t, int64(2), recs[1]["id"])
			assert.Equal(t, "PG", recs[0]["rating"])
			assert.Equal(t, int64(2006), recs[0]["release_year"])
			assert.True(t, decimal.RequireFromString("0.99").Equal(recs[0]["rental_rate"].(decimal.Decimal)))

			recs, err = s.Select(ctx, film, catalog.Query{Limit: 2, Offset: 2})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, int64(3), recs[0]["id"])
		})
	})

	t.Run("Select sorted", func(t *testing.T) {
		length, _ := film.Field("length")
		f.inTx(t, func(ctx context.Context, s *Store) {
			recs, err := s.Select(ctx, film, catalog.Query{Order: []catalog.Order{{Field: length, Desc: true}}, Limit: 10})
			require.NoError(t, err)
			require.Len(t, recs, 3)
			assert.Equal(t, []any{int64(86), int64(50), int64(48)}, []any{recs[0]["length"], recs[1]["length"], recs[2]["length"]})
		})
	})

	t.Run("Get and GetMany", func(t *testing.T) {
		f.inTx(t, func(ctx context.Context, s *Store) {
			rec, err := s.Get(ctx, film, int64(3), false)
			require.NoError(t, err)
			assert.Equal(t, "ADAPTATION HOLES", rec["title"])
			assert.Equal(t, "NC-17", rec["rating"])
			assert.Nil(t, rec["original_language_id"])

			rec, err = s.Get(ctx, film, int64(999), true)
			require.NoError(t, err)
			assert.Nil(t, rec)

			recs, err := s.GetMany(ctx, language, []any{int64(1), int64(2), int64(1)})
			require.NoError(t, err)
			assert.Len(t, recs, 2)
		})
	})

	t.Run("Insert Update Delete", func(t *testing.T) {
		f.inTx(t, func(ctx context.Context, s *Store) {
			id, err := s.Insert(ctx, actor, catalog.Record{"first_name": "JENNIFER", "last_name": "DAVIS"})
			require.NoError(t, err)
			assert.Equal(t, int64(4), id)

			before, err := s.Get(ctx, actor, id, true)
			require.NoError(t, err)

			require.NoError(t, s.Update(ctx, actor, id, catalog.Record{"last_name": "DAVIES"}))
			after, err := s.Get(ctx, actor, id, false)
			require.NoError(t, err)
			assert.Equal(t, "DAVIES", after["last_name"])
			assert.False(t, after["last_update"].(time.Time).Before(before["last_update"].(time.Time)))

			assert.ErrorIs(t, s.Update(ctx, actor, int64(999), catalog.Record{"last_name": "X"}), ErrNoRowsUpdated)

			found, err := s.Delete(ctx, actor, id)
			require.NoError(t, err)
			assert.True(t, found)
			found, err = s.Delete(ctx, actor, id)
			require.NoError(t, err)
			assert.False(t, found)
		})
	})

	t.Run("Insert fills defaults", func(t *testing.T) {
		f.inTx(t, func(ctx context.Context, s *Store) {
			id, err := s.Insert(ctx, film, catalog.Record{"title": "AIRPLANE SIERRA", "language_id": int64(1), "rating": "PG-13"})
			require.NoError(t, err)
			rec, err := s.Get(ctx, film, id, false)
			require.NoError(t, err)
			assert.Equal(t, int64(3), rec["rental_duration"])
			assert.Equal(t, "PG-13", rec["rating"])
		})
	})

	t.Run("Related keys", func(t *testing.T) {
		actors, _ := film.Field("actors")
		inventories, _ := film.Field("inventories")
		inventory := f.entity(t, "inventory")

		f.inTx(t, func(ctx context.Context, s *Store) {
			keys, err := s.RelatedKeys(ctx, film, actors, actor, int64(1))
			require.NoError(t, err)
			assert.Equal(t, []any{int64(1), int64(2)}, keys)

			require.NoError(t, s.SetRelated(ctx, film, actors, actor, int64(1), []any{int64(3)}))
			keys, err = s.RelatedKeys(ctx, film, actors, actor, int64(1))
			require.NoError(t, err)
			assert.Equal(t, []any{int64(3)}, keys)

			require.NoError(t, s.ClearRelated(ctx, film, actors, int64(1)))
			keys, err = s.RelatedKeys(ctx, film, actors, actor, int64(1))
			require.NoError(t, err)
			assert.Empty(t, keys)

			keys, err = s.RelatedKeys(ctx, film, inventories, inventory, int64(1))
			require.NoError(t, err)
			assert.Equal(t, []any{int64(1), int64(2)}, keys)

			require.NoError(t, s.SetRelated(ctx, film, inventories, inventory, int64(2), []any{int64(2)}))
			keys, err = s.RelatedKeys(ctx, film, inventories, inventory, int64(2))
			require.NoError(t, err)
			assert.Equal(t, []any{int64(2)}, keys)
		})
	})

	t.Run("Constraint violation", func(t *testing.T) {
		f.inTx(t, func(ctx context.Context, s *Store) {
			_, err := s.Insert(ctx, film, catalog.Record{"title": "ORPHAN", "language_id": int64(99)})
			assert.Error(t, err)
		})
	})
}

// A second writer blocks on the row lock until the first commits and then
// sees the committed value.
func TestStoreGetForUpdateSerializes(t *testing.T) {
	f := newFixture(t)
	actor := f.entity(t, "actor")
	ctx := context.Background()

	tx1, err := f.pool.Begin(ctx)
	require.NoError(t, err)
	defer tx1.Rollback(ctx)
	s1 := NewStore(tx1, f.schema)

	_, err = s1.Get(ctx, actor, int64(1), true)
	require.NoError(t, err)

	type result struct {
		rec catalog.Record
		err error
	}
	done := make(chan result, 1)
	go func() {
		tx2, err := f.pool.Begin(ctx)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer tx2.Rollback(ctx)
		rec, err := NewStore(tx2, f.schema).Get(ctx, actor, int64(1), true)
		done <- result{rec: rec, err: err}
	}()

	select {
	case <-done:
		t.Fatal("second transaction acquired the row lock while the first held it")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, s1.Update(ctx, actor, int64(1), catalog.Record{"first_name": "PENNY"}))
	require.NoError(t, tx1.Commit(ctx))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "PENNY", r.rec["first_name"])
	case <-time.After(5 * time.Second):
		t.Fatal("second transaction never acquired the row lock")
	}
}
