// internal/domain/report/model.go

// Package report defines the core domain model of the incident-report
// service: reports with a derived spatial key, their append-only audit
// trail, the status transition graph, and the collaborator interfaces the
// service layer depends on.
package report

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies an incident report.
type Category string

const (
	CategoryTheft     Category = "theft"
	CategoryAssault   Category = "assault"
	CategoryVandalism Category = "vandalism"
	CategoryFraud     Category = "fraud"
	CategoryBurglary  Category = "burglary"
	CategoryOther     Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryTheft,
	CategoryAssault,
	CategoryVandalism,
	CategoryFraud,
	CategoryBurglary,
	CategoryOther,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusRejected      Status = "rejected"
	StatusClosed        Status = "closed"
)

// transitions is the status graph. A report starts at pending; closed
// accepts nothing further.
var transitions = map[Status][]Status{
	StatusPending:       {StatusInvestigating},
	StatusInvestigating: {StatusResolved, StatusRejected, StatusClosed},
	StatusResolved:      {StatusClosed},
	StatusRejected:      {StatusClosed},
	StatusClosed:        {},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the status graph permits moving a report
// from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AuthorKind identifies who wrote a status update.
type AuthorKind string

const (
	AuthorSystem   AuthorKind = "system"
	AuthorOfficer  AuthorKind = "officer"
	AuthorReporter AuthorKind = "reporter"
)

// IsValid reports whether a is a known author kind.
func (a AuthorKind) IsValid() bool {
	switch a {
	case AuthorSystem, AuthorOfficer, AuthorReporter:
		return true
	}
	return false
}

// Report is an incident report submitted by a citizen.
//
// GeoKey is always the geohash encoding of the current coordinate at the
// index precision. It is derived, never hand-set: the lifecycle service
// recomputes it whenever the coordinate changes.
type Report struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	GeoKey      string    `json:"geo_key"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Urgent      bool      `json:"urgent"`
	Anonymous   bool      `json:"anonymous"`
	StationID   string    `json:"station_id,omitempty"`
	MediaCount  int       `json:"media_count"`
}

// StatusUpdate is one immutable entry in a report's audit trail. Updates
// are append-only: insertion order is causal order, and no update is ever
// mutated or removed except when the whole report is deleted.
type StatusUpdate struct {
	ID        string     `json:"id"`
	ReportID  string     `json:"report_id"`
	Author    AuthorKind `json:"author"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

// MediaRef points at an externally managed piece of media attached to a
// report. The media service owns upload and storage; this core only tracks
// the references so that deletion can cascade.
type MediaRef struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Nearby pairs a report with its exact distance from a query center.
type Nearby struct {
	Report     Report  `json:"report"`
	DistanceKm float64 `json:"distance_km"`
}

// NearbyFilter narrows a proximity query. Zero values mean "no filter".
type NearbyFilter struct {
	Since    time.Time
	Category Category
}

// Sentinel errors shared across store implementations.
var (
	// ErrNotFound is returned when a report does not exist. A query with
	// no matches is an empty slice, not an error.
	ErrNotFound = errors.New("report not found")

	// ErrStatusConflict is returned when a compare-and-swap status write
	// loses against a concurrent transition on the same report.
	ErrStatusConflict = errors.New("report status changed concurrently")
)

// InvalidTransitionError reports a status transition the graph forbids.
// It names the offending pair; invalid transitions fail loudly rather
// than silently no-op.
type InvalidTransitionError struct {
	ReportID string
	From     Status
	To       Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %q -> %q for report %s", e.From, e.To, e.ReportID)
}
