package memstore

import (
	"testing"
	"time"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/catalog/sakila"
	"github.com/shopspring/decimal"
)

// Seeded is the last_update of every seeded row.
var Seeded = time.Date(2006, 2, 15, 4, 34, 33, 0, time.UTC)

var actorNames = [][2]string{
	{"PENELOPE", "GUINESS"},
	{"NICK", "WAHLBERG"},
	{"ED", "CHASE"},
	{"JENNIFER", "DAVIS"},
	{"JOHNNY", "LOLLOBRIGIDA"},
	{"BETTE", "NICHOLSON"},
	{"GRACE", "MOSTEL"},
	{"MATTHEW", "JOHANSSON"},
	{"JOE", "SWANK"},
	{"CHRISTIAN", "GABLE"},
	{"ZERO", "CAGE"},
	{"KARL", "BERRY"},
}

// Sakila returns the sakila catalog and a store seeded with 3 languages,
// 12 actors, 2 categories, 3 films and 2 inventories of film 1. Film 1 is
// played by actors 1 and 2 and filed under category 1; film 2 by actor 3.
func Sakila(t testing.TB) (*catalog.Catalog, *Store) {
	t.Helper()
	cat, err := sakila.New()
	if err != nil {
		t.Fatalf("sakila catalog: %v", err)
	}
	entity := func(name string) *catalog.Entity {
		e, err := cat.Entity(name)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	s := New()
	language := entity("language")
	for i, name := range []string{"English", "Italian", "Japanese"} {
		s.Put(language, catalog.Record{"id": int64(i + 1), "name": name, "last_update": Seeded})
	}

	actor := entity("actor")
	for i, n := range actorNames {
		s.Put(actor, catalog.Record{"id": int64(i + 1), "first_name": n[0], "last_name": n[1], "last_update": Seeded})
	}

	category := entity("category")
	s.Put(category, catalog.Record{"id": int64(1), "name": "Action", "last_update": Seeded})
	s.Put(category, catalog.Record{"id": int64(2), "name": "Animation", "last_update": Seeded})

	film := entity("film")
	films := []struct {
		title    string
		length   int64
		rating   string
		duration int64
		rate     string
		cost     string
	}{
		{"ACADEMY DINOSAUR", 86, "PG", 6, "0.99", "20.99"},
		{"ACE GOLDFINGER", 48, "G", 3, "4.99", "12.99"},
		{"ADAPTATION HOLES", 50, "NC-17", 7, "2.99", "18.99"},
	}
	for i, f := range films {
		s.Put(film, catalog.Record{
			"id":                   int64(i + 1),
			"title":                f.title,
			"description":          nil,
			"release_year":         int64(2006),
			"language_id":          int64(1),
			"original_language_id": nil,
			"rental_duration":      f.duration,
			"rental_rate":          decimal.RequireFromString(f.rate),
			"length":               f.length,
			"replacement_cost":     decimal.RequireFromString(f.cost),
			"rating":               f.rating,
			"special_features":     "Trailers,Deleted Scenes",
			"last_update":          Seeded,
		})
	}

	inventory := entity("inventory")
	for id := int64(1); id <= 2; id++ {
		s.Put(inventory, catalog.Record{"id": id, "film_id": int64(1), "store_id": int64(1), "last_update": Seeded})
	}

	s.Link("film_actor", map[string]int64{"actor_id": 1, "film_id": 1})
	s.Link("film_actor", map[string]int64{"actor_id": 2, "film_id": 1})
	s.Link("film_actor", map[string]int64{"actor_id": 3, "film_id": 2})
	s.Link("film_category", map[string]int64{"film_id": 1, "category_id": 1})
	return cat, s
}
