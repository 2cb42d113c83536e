package catalog

// Order sorts by one column.
type Order struct {
	Field *Field
	Desc  bool
}

// Query selects one page of an entity's rows. Rows are ordered by Order and
// then by primary key so pages are stable.
type Query struct {
	Order  []Order
	Offset int
	Limit  int
}
