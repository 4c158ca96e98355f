// Package reconcile implements the metafield expiration sweep: it walks the catalog page by page,
// decides per product whether the sentinel tag and the expiration entry must go, and applies the
// resulting mutations through narrow ports onto the remote store.
package reconcile

import (
	"context"

	"github.com/coachpo/metasweep/internal/domain/catalog"
)

// QueryPort reads the catalog one page at a time. An empty cursor requests the first page.
type QueryPort interface {
	FetchPage(ctx context.Context, cursor string) (catalog.Page, error)
}

// MutatePort writes and deletes metafields.
type MutatePort interface {
	SetMetafield(ctx context.Context, in catalog.MetafieldInput) error
	DeleteMetafield(ctx context.Context, id string) error
}

// MetafieldLister resolves metafields of a product addressed by its legacy numeric id.
type MetafieldLister interface {
	ListMetafields(ctx context.Context, legacyOwnerID int64, namespace, key string) ([]catalog.Metafield, error)
}
