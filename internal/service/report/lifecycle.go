// internal/service/report/lifecycle.go

// Package report implements the report domain services: the status
// lifecycle, the proximity index, and windowed aggregate statistics.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kavach/internal/domain/report"
	"kavach/internal/geo"
)

// statusMessages are the canned audit-trail messages appended on each
// transition.
var statusMessages = map[report.Status]string{
	report.StatusPending:       "Report submitted.",
	report.StatusInvestigating: "Investigation has started on this report.",
	report.StatusResolved:      "This report has been resolved.",
	report.StatusRejected:      "This report has been rejected.",
	report.StatusClosed:        "This report has been closed.",
}

// LifecycleConfig contains configuration for the lifecycle service.
type LifecycleConfig struct {
	// IndexPrecision is the geohash precision used for every derived
	// spatial key. It must match the precision the proximity index
	// queries at and must stay stable for the lifetime of the index.
	IndexPrecision int

	// NotifyTimeout bounds the best-effort notification call issued
	// after a committed transition.
	NotifyTimeout time.Duration
}

// LifecycleService implements report.Lifecycle.
type LifecycleService struct {
	store  report.Store
	sink   report.NotificationSink
	clock  report.Clock
	logger *logrus.Logger
	config LifecycleConfig
}

// NewLifecycleService creates a lifecycle service. A nil sink disables
// notifications; a nil clock falls back to the system clock.
func NewLifecycleService(
	store report.Store,
	sink report.NotificationSink,
	clock report.Clock,
	logger *logrus.Logger,
	config LifecycleConfig,
) *LifecycleService {
	if clock == nil {
		clock = report.SystemClock{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if config.IndexPrecision <= 0 {
		config.IndexPrecision = geo.DefaultPrecision
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 2 * time.Second
	}

	return &LifecycleService{
		store:  store,
		sink:   sink,
		clock:  clock,
		logger: logger,
		config: config,
	}
}

// Create stores a new report. Regardless of what the draft carries, the
// report starts at pending with a freshly derived spatial key and exactly
// one system audit entry.
func (s *LifecycleService) Create(ctx context.Context, draft report.Report) (*report.Report, error) {
	if !draft.Category.IsValid() {
		return nil, fmt.Errorf("unknown report category %q", draft.Category)
	}

	key, err := geo.Encode(draft.Lat, draft.Lng, s.config.IndexPrecision)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	r := draft
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.GeoKey = key
	r.Status = report.StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.store.Put(ctx, r); err != nil {
		return nil, fmt.Errorf("error saving report: %w", err)
	}

	initial := report.StatusUpdate{
		ID:        uuid.New().String(),
		ReportID:  r.ID,
		Author:    report.AuthorSystem,
		Content:   statusMessages[report.StatusPending],
		CreatedAt: now,
	}
	if err := s.store.AppendUpdate(ctx, initial); err != nil {
		return nil, fmt.Errorf("error appending initial status update: %w", err)
	}

	s.notify(report.Event{
		Kind:     "created",
		ReportID: r.ID,
		Payload:  map[string]any{"status": r.Status, "category": r.Category},
	})

	return &r, nil
}

// Get returns a report by id.
func (s *LifecycleService) Get(ctx context.Context, id string) (*report.Report, error) {
	return s.store.Get(ctx, id)
}

// Transition applies a validated status change. The status write is a
// compare-and-swap: if another writer moved the report away from the
// status this call validated against, the store reports a conflict and
// nothing is committed.
func (s *LifecycleService) Transition(
	ctx context.Context,
	id string,
	to report.Status,
	note string,
	author report.AuthorKind,
) (*report.Report, *report.StatusUpdate, error) {
	if !to.IsValid() {
		return nil, nil, fmt.Errorf("unknown status %q", to)
	}
	if !author.IsValid() {
		author = report.AuthorSystem
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !report.CanTransition(current.Status, to) {
		return nil, nil, &report.InvalidTransitionError{
			ReportID: id,
			From:     current.Status,
			To:       to,
		}
	}

	now := s.clock.Now()

	updated, err := s.store.CompareAndSwapStatus(ctx, id, current.Status, to, now)
	if err != nil {
		return nil, nil, err
	}

	content := statusMessages[to]
	if note != "" {
		content = content + " " + note
	}

	audit := report.StatusUpdate{
		ID:        uuid.New().String(),
		ReportID:  id,
		Author:    author,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.store.AppendUpdate(ctx, audit); err != nil {
		return nil, nil, fmt.Errorf("error appending status update: %w", err)
	}

	// Notification is fire-and-forget: the transition is already
	// committed and must not be failed or rolled back by delivery
	// problems.
	s.notify(report.Event{
		Kind:     "status_changed",
		ReportID: id,
		Payload:  map[string]any{"status": to, "previous": current.Status},
	})

	return updated, &audit, nil
}

// SetCoordinate corrects a report's coordinate. The spatial key is always
// recomputed from the new coordinate; it is never accepted from callers.
func (s *LifecycleService) SetCoordinate(ctx context.Context, id string, lat, lng float64) (*report.Report, error) {
	key, err := geo.Encode(lat, lng, s.config.IndexPrecision)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateCoordinate(ctx, id, lat, lng, key, s.clock.Now())
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a report and everything it owns. The cascade order is
// fail-closed: status updates first, then media references, then the
// report itself. If any child deletion fails the parent record survives,
// so a partial cleanup can be retried but an orphaned audit trail cannot
// occur.
func (s *LifecycleService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	if err := s.store.DeleteUpdates(ctx, id); err != nil {
		return fmt.Errorf("error deleting status updates for report %s: %w", id, err)
	}
	if err := s.store.DeleteMedia(ctx, id); err != nil {
		return fmt.Errorf("error deleting media references for report %s: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting report %s: %w", id, err)
	}

	s.notify(report.Event{Kind: "deleted", ReportID: id})

	return nil
}

// Updates returns the report's audit trail in causal order.
func (s *LifecycleService) Updates(ctx context.Context, id string) ([]report.StatusUpdate, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListUpdates(ctx, id)
}

// notify delivers an event to the sink with a short timeout. Failures are
// logged and swallowed.
func (s *LifecycleService) notify(e report.Event) {
	if s.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
	defer cancel()

	if err := s.sink.Notify(ctx, e); err != nil {
		s.logger.WithFields(logrus.Fields{
			"report_id": e.ReportID,
			"kind":      e.Kind,
		}).WithError(err).Warn("notification delivery failed")
	}
}
