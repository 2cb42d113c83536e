package sakila

import "github.com/edgeflare/restable/pkg/catalog"

// MPAARating is the film rating stored as the mpaa_rating enum.
var MPAARating = &catalog.EnumType{
	Name: "mpaa_rating",
	Members: []catalog.EnumMember{
		{Name: "G", Value: "G"},
		{Name: "PG", Value: "PG"},
		{Name: "PG_13", Value: "PG-13"},
		{Name: "R", Value: "R"},
		{Name: "NC_17", Value: "NC-17"},
	},
}

func Category() *catalog.Entity {
	return &catalog.Entity{
		Name: "category", Singular: "Category", Plural: "Categories", Path: "categories", Table: "category",
		Fields: []*catalog.Field{
			id("category_id"),
			str("name", 25, false),
			lastUpdate(false),
			manyToMany("films", "film", "film_category", "category_id", "film_id"),
		},
	}
}

func Actor() *catalog.Entity {
	return &catalog.Entity{
		Name: "actor", Singular: "Actor", Plural: "Actors", Path: "actors", Table: "actor",
		Fields: []*catalog.Field{
			id("actor_id"),
			str("first_name", 45, false),
			str("last_name", 45, false),
			lastUpdate(false),
			manyToMany("films", "film", "film_actor", "actor_id", "film_id"),
		},
	}
}

func Language() *catalog.Entity {
	return &catalog.Entity{
		Name: "language", Singular: "Language", Plural: "Languages", Path: "languages", Table: "language",
		Fields: []*catalog.Field{
			id("language_id"),
			str("name", 20, false),
			lastUpdate(false),
			hasMany("films", "film", "language_id"),
			hasMany("films_original", "film", "original_language_id"),
		},
	}
}

func Inventory() *catalog.Entity {
	return &catalog.Entity{
		Name: "inventory", Singular: "Inventory", Plural: "Inventories", Path: "inventories", Table: "inventory",
		Fields: []*catalog.Field{
			id("inventory_id"),
			fk("film_id", false),
			fk("store_id", false),
			lastUpdate(false),
			belongsTo("film", "film", "film_id"),
			belongsTo("store", "store", "store_id"),
			hasMany("rentals", "rental", "inventory_id"),
		},
	}
}

func Film() *catalog.Entity {
	return &catalog.Entity{
		Name: "film", Singular: "Film", Plural: "Films", Path: "films", Table: "film",
		Fields: []*catalog.Field{
			id("film_id"),
			str("title", 255, false),
			{Name: "description", Type: catalog.Text, Nullable: true},
			{Name: "release_year", Type: catalog.SmallInteger, Nullable: true},
			fk("language_id", false),
			fk("original_language_id", true),
			{Name: "rental_duration", Type: catalog.SmallInteger, HasDefault: true},
			{Name: "rental_rate", Type: catalog.Numeric, Precision: 4, Scale: 2, HasDefault: true},
			{Name: "length", Type: catalog.SmallInteger, Nullable: true},
			{Name: "replacement_cost", Type: catalog.Numeric, Precision: 5, Scale: 2, HasDefault: true},
			{Name: "rating", Type: catalog.Enum, Enum: MPAARating, Nullable: true, HasDefault: true},
			// comma separated values
			str("special_features", 255, true),
			lastUpdate(false),
			belongsTo("language", "language", "language_id"),
			belongsTo("original_language", "language", "original_language_id"),
			manyToMany("categories", "category", "film_category", "film_id", "category_id"),
			manyToMany("actors", "actor", "film_actor", "film_id", "actor_id"),
			hasMany("inventories", "inventory", "film_id"),
		},
	}
}
