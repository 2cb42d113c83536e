// Package sakila declares the DVD rental sample database (sakila / dvdrental)
// as a REST catalog.
package sakila

import "github.com/edgeflare/restable/pkg/catalog"

// New returns the validated sakila catalog.
func New() (*catalog.Catalog, error) {
	c := catalog.New(
		Country(), City(), Address(), Customer(),
		Category(), Actor(), Language(), Inventory(), Film(),
		Staff(), Store(), Payment(), Rental(),
	)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func id(column string) *catalog.Field {
	return &catalog.Field{Name: "id", Column: column, Type: catalog.Integer, PrimaryKey: true, HasDefault: true}
}

// lastUpdate is present on every sakila table and refreshed on each write.
func lastUpdate(nullable bool) *catalog.Field {
	return &catalog.Field{Name: "last_update", Type: catalog.DateTime, Nullable: nullable, HasDefault: true, ServerMaintained: true}
}

func str(name string, maxLength int, nullable bool) *catalog.Field {
	return &catalog.Field{Name: name, Type: catalog.String, MaxLength: maxLength, Nullable: nullable}
}

func fk(name string, nullable bool) *catalog.Field {
	return &catalog.Field{Name: name, Type: catalog.Integer, Nullable: nullable}
}

func belongsTo(name, target, column string) *catalog.Field {
	return &catalog.Field{Name: name, Type: catalog.Relation, Relation: &catalog.RelationSpec{
		Kind: catalog.BelongsTo, Target: target, Column: column,
	}}
}

func hasMany(name, target, remoteColumn string) *catalog.Field {
	return &catalog.Field{Name: name, Type: catalog.Relation, Nullable: true, Relation: &catalog.RelationSpec{
		Kind: catalog.HasMany, Target: target, RemoteColumn: remoteColumn,
	}}
}

func manyToMany(name, target, joinTable, joinColumn, joinTargetColumn string) *catalog.Field {
	return &catalog.Field{Name: name, Type: catalog.Relation, Nullable: true, Relation: &catalog.RelationSpec{
		Kind: catalog.ManyToMany, Target: target,
		JoinTable: joinTable, JoinColumn: joinColumn, JoinTargetColumn: joinTargetColumn,
	}}
}
