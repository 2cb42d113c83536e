package sakila

import "github.com/edgeflare/restable/pkg/catalog"

func Country() *catalog.Entity {
	return &catalog.Entity{
		Name: "country", Singular: "Country", Plural: "Countries", Path: "countries", Table: "country",
		Fields: []*catalog.Field{
			id("country_id"),
			{Name: "name", Column: "country", Type: catalog.String, MaxLength: 50},
			lastUpdate(false),
			hasMany("cities", "city", "country_id"),
		},
	}
}

func City() *catalog.Entity {
	return &catalog.Entity{
		Name: "city", Singular: "City", Plural: "Cities", Path: "cities", Table: "city",
		Fields: []*catalog.Field{
			id("city_id"),
			{Name: "name", Column: "city", Type: catalog.String, MaxLength: 50},
			fk("country_id", false),
			lastUpdate(false),
			belongsTo("country", "country", "country_id"),
			hasMany("addresses", "address", "city_id"),
		},
	}
}

func Address() *catalog.Entity {
	return &catalog.Entity{
		Name: "address", Singular: "Address", Plural: "Addresses", Path: "addresses", Table: "address",
		Fields: []*catalog.Field{
			id("address_id"),
			{Name: "first_line", Column: "address", Type: catalog.String, MaxLength: 50},
			{Name: "second_line", Column: "address2", Type: catalog.String, MaxLength: 50, Nullable: true},
			str("district", 20, false),
			fk("city_id", false),
			str("postal_code", 10, true),
			str("phone", 20, false),
			lastUpdate(false),
			belongsTo("city", "city", "city_id"),
			hasMany("customers", "customer", "address_id"),
			hasMany("staff", "staff", "address_id"),
			hasMany("stores", "store", "address_id"),
		},
	}
}

func Customer() *catalog.Entity {
	return &catalog.Entity{
		Name: "customer", Singular: "Customer", Plural: "Customers", Path: "customers", Table: "customer",
		Fields: []*catalog.Field{
			id("customer_id"),
			fk("store_id", false),
			str("first_name", 45, false),
			str("last_name", 45, false),
			str("email", 50, true),
			fk("address_id", false),
			{Name: "active", Type: catalog.Boolean, HasDefault: true},
			{Name: "create_date", Type: catalog.DateTime, Nullable: true, HasDefault: true},
			lastUpdate(true),
			belongsTo("store", "store", "store_id"),
			belongsTo("address", "address", "address_id"),
			hasMany("payments", "payment", "customer_id"),
			hasMany("rentals", "rental", "customer_id"),
		},
	}
}
