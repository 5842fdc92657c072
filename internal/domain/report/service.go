// internal/domain/report/service.go

package report

import (
	"context"
	"time"

	"kavach/internal/geo"
)

// Store is the persistence contract the core requires of its collaborator:
// a document store capable of lexicographic range queries over the geohash
// key field, with per-record optimistic concurrency for status writes.
//
// Implementations propagate their own unavailability errors unchanged; the
// core never retries. Lookups that match nothing return empty slices, and
// only point reads of a missing report return ErrNotFound.
type Store interface {
	// Get returns a report by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Report, error)

	// Put inserts or replaces a report.
	Put(ctx context.Context, r Report) error

	// Delete removes a report record. It does not cascade; the lifecycle
	// service owns cascade ordering.
	Delete(ctx context.Context, id string) error

	// UpdateCoordinate sets a report's coordinate together with its
	// recomputed geohash key and returns the updated record.
	UpdateCoordinate(ctx context.Context, id string, lat, lng float64, geoKey string, updatedAt time.Time) (*Report, error)

	// CompareAndSwapStatus moves a report from one status to another only
	// if it is still in the expected status, returning ErrStatusConflict
	// when a concurrent writer got there first.
	CompareAndSwapStatus(ctx context.Context, id string, from, to Status, updatedAt time.Time) (*Report, error)

	// QueryKeyRange returns reports whose geohash key falls inside the
	// inclusive lexicographic range, ordered by key then by creation time
	// descending. A limit of 0 means no limit.
	QueryKeyRange(ctx context.Context, kr geo.KeyRange, limit int) ([]Report, error)

	// QueryWindow returns reports created within [from, to], newest first.
	QueryWindow(ctx context.Context, from, to time.Time) ([]Report, error)

	// AppendUpdate appends one entry to a report's audit trail.
	AppendUpdate(ctx context.Context, u StatusUpdate) error

	// ListUpdates returns a report's audit trail in insertion order.
	ListUpdates(ctx context.Context, reportID string) ([]StatusUpdate, error)

	// DeleteUpdates removes a report's entire audit trail.
	DeleteUpdates(ctx context.Context, reportID string) error

	// ListMedia returns the media references attached to a report.
	ListMedia(ctx context.Context, reportID string) ([]MediaRef, error)

	// DeleteMedia removes a report's media references.
	DeleteMedia(ctx context.Context, reportID string) error
}

// Event is the payload handed to the notification collaborator.
type Event struct {
	Kind     string         `json:"kind"`
	ReportID string         `json:"report_id"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// NotificationSink delivers report events to interested parties. Delivery
// is best-effort from the core's point of view: callers issue Notify with
// a short timeout, log failures, and never let them affect the triggering
// operation.
type NotificationSink interface {
	Notify(ctx context.Context, e Event) error
}

// Clock supplies the current time. It is injected so that timestamp and
// time-bucket logic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Lifecycle manages report creation, status transitions, coordinate
// corrections and cascading deletion.
type Lifecycle interface {
	// Create stores a new report at status pending and appends the
	// initial system audit entry.
	Create(ctx context.Context, draft Report) (*Report, error)

	// Get returns a report by id.
	Get(ctx context.Context, id string) (*Report, error)

	// Transition validates and applies a status change, appending an
	// audit record and notifying the sink best-effort.
	Transition(ctx context.Context, id string, to Status, note string, author AuthorKind) (*Report, *StatusUpdate, error)

	// SetCoordinate corrects a report's coordinate, recomputing its
	// spatial key.
	SetCoordinate(ctx context.Context, id string, lat, lng float64) (*Report, error)

	// Delete removes a report and everything it owns. The cascade is
	// fail-closed: the report itself is only deleted after its updates
	// and media references are gone.
	Delete(ctx context.Context, id string) error

	// Updates returns the report's audit trail in causal order.
	Updates(ctx context.Context, id string) ([]StatusUpdate, error)
}

// Index answers proximity queries over stored reports.
type Index interface {
	// FindNearby returns reports within radiusKm of the center, nearest
	// first, after applying the filter and truncating to limit.
	FindNearby(ctx context.Context, lat, lng, radiusKm float64, filter NearbyFilter, limit int) ([]Nearby, error)
}
