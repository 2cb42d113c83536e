package sakila

import "github.com/edgeflare/restable/pkg/catalog"

func Staff() *catalog.Entity {
	return &catalog.Entity{
		Name: "staff", Singular: "Staff", Plural: "Staff", Path: "staff", Table: "staff",
		Fields: []*catalog.Field{
			id("staff_id"),
			str("first_name", 45, false),
			str("last_name", 45, false),
			fk("address_id", true),
			str("picture", 200, true),
			str("email", 50, true),
			fk("store_id", false),
			{Name: "active", Type: catalog.Boolean},
			str("username", 16, false),
			{Name: "password", Type: catalog.String, MaxLength: 40, Nullable: true, LoadOnly: true},
			lastUpdate(false),
			belongsTo("address", "address", "address_id"),
			belongsTo("store", "store", "store_id"),
			hasMany("managed_stores", "store", "manager_staff_id"),
			hasMany("payments", "payment", "staff_id"),
			hasMany("rentals", "rental", "staff_id"),
		},
	}
}

func Store() *catalog.Entity {
	return &catalog.Entity{
		Name: "store", Singular: "Store", Plural: "Stores", Path: "stores", Table: "store",
		Fields: []*catalog.Field{
			id("store_id"),
			fk("manager_staff_id", false),
			fk("address_id", false),
			lastUpdate(false),
			belongsTo("manager_staff", "staff", "manager_staff_id"),
			belongsTo("address", "address", "address_id"),
			hasMany("staff", "staff", "store_id"),
			hasMany("customers", "customer", "store_id"),
			hasMany("inventories", "inventory", "store_id"),
		},
	}
}

func Payment() *catalog.Entity {
	return &catalog.Entity{
		Name: "payment", Singular: "Payment", Plural: "Payments", Path: "payments", Table: "payment",
		Fields: []*catalog.Field{
			id("payment_id"),
			fk("customer_id", false),
			fk("staff_id", false),
			fk("rental_id", true),
			{Name: "amount", Type: catalog.Numeric, Precision: 5, Scale: 2},
			{Name: "payment_date", Type: catalog.DateTime},
			lastUpdate(true),
			belongsTo("customer", "customer", "customer_id"),
			belongsTo("staff", "staff", "staff_id"),
			belongsTo("rental", "rental", "rental_id"),
		},
	}
}

func Rental() *catalog.Entity {
	return &catalog.Entity{
		Name: "rental", Singular: "Rental", Plural: "Rentals", Path: "rentals", Table: "rental",
		Fields: []*catalog.Field{
			id("rental_id"),
			{Name: "rental_date", Type: catalog.DateTime},
			fk("inventory_id", false),
			fk("customer_id", false),
			{Name: "return_date", Type: catalog.DateTime, Nullable: true},
			fk("staff_id", false),
			lastUpdate(false),
			belongsTo("inventory", "inventory", "inventory_id"),
			belongsTo("customer", "customer", "customer_id"),
			belongsTo("staff", "staff", "staff_id"),
			hasMany("payments", "payment", "rental_id"),
		},
	}
}
