// Package alerts implements anonymized crossed path detection
package alerts

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// EventStore persists alert events
type EventStore interface {
	CreateIfSubjectIdle(ctx context.Context, event *models.CrossedAlertEvent, since time.Time) (bool, error)
	LatestForSubject(ctx context.Context, subjectUserID string) (*models.CrossedAlertEvent, error)
	ExistsRecentForPair(ctx context.Context, subjectUserID, candidateUserID string, since time.Time) (bool, error)
}

// UserSource resolves the subject user
type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Matcher scans published locations around a reference point
type Matcher interface {
	FindNearbyPublished(ctx context.Context, subject *models.User, refLat, refLng float64, now time.Time) ([]models.User, error)
}

// ServiceConfig contains configuration for the alert engine
type ServiceConfig struct {
	SubjectCooldown time.Duration // Minimum gap between a subject's alerts (default: 6h)
	PairDedupe      time.Duration // Gap before re-alerting on the same candidate (default: 24h)
	EventTTL        time.Duration // How long an alert event is retained (default: 7 days)
}

// DefaultConfig returns default alert engine configuration
func DefaultConfig() ServiceConfig {
	return ServiceConfig{
		SubjectCooldown: 6 * time.Hour,
		PairDedupe:      24 * time.Hour,
		EventTTL:        7 * 24 * time.Hour,
	}
}

// Service implements the alert engine
type Service struct {
	logger  ectologger.Logger
	events  EventStore
	users   UserSource
	matcher Matcher
	config  ServiceConfig
}

// NewService creates a new alert engine
func NewService(logger ectologger.Logger, events EventStore, users UserSource, matcher Matcher, config ServiceConfig) *Service {
	return &Service{
		logger:  logger,
		events:  events,
		users:   users,
		matcher: matcher,
		config:  config,
	}
}

// Detect checks whether anyone the subject is eligible to cross with sits
// near the given coordinates right now. The reference point is whatever the
// caller reports, but other users are only ever scanned by their published
// projections. The result reveals only that someone was there, never who,
// and the response type cannot carry an identifier at all.
func (s *Service) Detect(ctx context.Context, subjectUserID string, lat, lng float64, now time.Time) (*models.CrossedAlertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "alerts.Service.Detect")
	defer span.End()

	subject, err := s.users.Get(ctx, subjectUserID)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			metrics.RecordAlert("none")
			return &models.CrossedAlertResult{Triggered: false, Reason: models.ReasonUserNotFound}, nil
		}
		return nil, err
	}

	cooldownStart := now.Add(-s.config.SubjectCooldown)

	latest, err := s.events.LatestForSubject(ctx, subjectUserID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.CreatedAt.After(cooldownStart) {
		metrics.RecordAlert("cooldown")
		return &models.CrossedAlertResult{Triggered: false, Reason: models.AlertReasonCooldown}, nil
	}

	if !subject.IsVerified() {
		metrics.RecordAlert("none")
		return &models.CrossedAlertResult{Triggered: false, Reason: models.AlertReasonNone}, nil
	}

	start := time.Now()
	candidates, err := s.matcher.FindNearbyPublished(ctx, subject, lat, lng, now)
	if err != nil {
		return nil, err
	}
	metrics.RecordScan("alerts", time.Since(start).Seconds())

	candidate, err := s.pickCandidate(ctx, subjectUserID, candidates, now)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		metrics.RecordAlert("none")
		return &models.CrossedAlertResult{Triggered: false, Reason: models.AlertReasonNone}, nil
	}

	event := &models.CrossedAlertEvent{
		SubjectUserID:   subjectUserID,
		CandidateUserID: candidate.ID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.config.EventTTL),
	}

	// The insert re-checks the cooldown in the same statement, so a
	// concurrent Detect that committed after the read above cannot produce
	// a second event inside one window.
	created, err := s.events.CreateIfSubjectIdle(ctx, event, cooldownStart)
	if err != nil {
		return nil, err
	}
	if !created {
		metrics.RecordAlert("cooldown")
		return &models.CrossedAlertResult{Triggered: false, Reason: models.AlertReasonCooldown}, nil
	}

	metrics.RecordAlert("triggered")
	s.logger.WithContext(ctx).WithFields(map[string]any{"subject_user_id": subjectUserID}).Info("Crossed alert triggered")

	return &models.CrossedAlertResult{Triggered: true}, nil
}

// pickCandidate drops recently alerted candidates and picks one of the
// rest deterministically, lowest id first, so repeated probing inside a
// window cannot enumerate nearby users.
func (s *Service) pickCandidate(ctx context.Context, subjectUserID string, candidates []models.User, now time.Time) (*models.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	since := now.Add(-s.config.PairDedupe)
	for i := range candidates {
		alerted, err := s.events.ExistsRecentForPair(ctx, subjectUserID, candidates[i].ID, since)
		if err != nil {
			return nil, err
		}
		if !alerted {
			return &candidates[i], nil
		}
	}

	return nil, nil
}
