// Package access records dispatched requests and serves them back to the
// admin interface.
package access

import (
	"context"

	"github.com/tkingovr/portal/api"
)

// Store defines the interface for access record persistence and retrieval.
type Store interface {
	// Write appends an access record.
	Write(ctx context.Context, record *api.AccessRecord) error

	// Query retrieves access records matching the filter, oldest first.
	Query(ctx context.Context, filter api.QueryFilter) ([]*api.AccessRecord, error)

	// Stats returns aggregate statistics.
	Stats(ctx context.Context) (*api.AccessStats, error)

	// Subscribe returns a channel that receives new access records in real time.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context) (<-chan *api.AccessRecord, func())

	// Close shuts down the store and flushes any buffers.
	Close() error
}
