package resource

import (
	"context"
	"net/http"

	"github.com/edgeflare/restable/pkg/catalog"
)

// Store is the unit of work a handler runs against. One Store is bound to a
// single request; implementations are not required to be safe for concurrent
// use.
type Store interface {
	// Select returns one page of rows.
	Select(ctx context.Context, e *catalog.Entity, q catalog.Query) ([]catalog.Record, error)
	// Get returns the row with the given primary key, or nil when there is
	// none. With forUpdate set the row stays locked until the unit of work
	// ends.
	Get(ctx context.Context, e *catalog.Entity, id any, forUpdate bool) (catalog.Record, error)
	// GetMany returns the rows whose primary key is in ids, in no particular
	// order.
	GetMany(ctx context.Context, e *catalog.Entity, ids []any) ([]catalog.Record, error)
	// Insert stores the column fields of rec and returns the new primary key.
	Insert(ctx context.Context, e *catalog.Entity, rec catalog.Record) (any, error)
	// Update writes changes (column fields only) and refreshes server-maintained
	// columns.
	Update(ctx context.Context, e *catalog.Entity, id any, changes catalog.Record) error
	// Delete removes the row and reports whether it existed.
	Delete(ctx context.Context, e *catalog.Entity, id any) (bool, error)
	// RelatedKeys returns the primary keys of the targets of a collection
	// relation.
	RelatedKeys(ctx context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any) ([]any, error)
	// SetRelated makes keys the targets of a collection relation. Many-to-many
	// associations are replaced; has-many targets are attached.
	SetRelated(ctx context.Context, e *catalog.Entity, rel *catalog.Field, target *catalog.Entity, id any, keys []any) error
}

// SessionFunc returns the Store bound to the request's unit of work.
type SessionFunc func(r *http.Request) (Store, error)
