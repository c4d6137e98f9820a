// Package crossings tracks repeated pair crossings and the unlock lifecycle
package crossings

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PathStore persists pair crossing counters
type PathStore interface {
	GetByPair(ctx context.Context, userA, userB string) (*models.CrossedPath, error)
	Increment(ctx context.Context, userA, userB string, now, cutoff time.Time) (*models.CrossedPath, bool, error)
	ArmUnlock(ctx context.Context, pairID string, expiresAt time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CrossedPath, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// UserSource resolves the profile shown for the other side of a pair
type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// EventPublisher emits crossing lifecycle events for the platform notifier
type EventPublisher interface {
	PublishCrossedPathEvent(ctx context.Context, event *kafka.CrossedPathEvent) error
}

// ServiceConfig contains configuration for the crossing tracker
type ServiceConfig struct {
	UnlockThreshold int           // Crossings needed to unlock a pair (default: 10)
	Cooldown        time.Duration // Minimum gap between counted crossings (default: 24h)
	UnlockWindow    time.Duration // How long an unlocked pair stays open (default: 48h)
}

// DefaultConfig returns default tracker configuration
func DefaultConfig() ServiceConfig {
	return ServiceConfig{
		UnlockThreshold: 10,
		Cooldown:        24 * time.Hour,
		UnlockWindow:    48 * time.Hour,
	}
}

// Service implements the crossing tracker
type Service struct {
	logger ectologger.Logger
	paths  PathStore
	users  UserSource
	events EventPublisher
	config ServiceConfig
}

// NewService creates a new crossing tracker
func NewService(logger ectologger.Logger, paths PathStore, users UserSource, events EventPublisher, config ServiceConfig) *Service {
	return &Service{
		logger: logger,
		paths:  paths,
		users:  users,
		events: events,
		config: config,
	}
}

// RecordCrossing counts one crossing for the pair, honoring the cooldown.
// Returns whether the crossing incremented the counter. A crossing inside
// the cooldown window is a no-op, not an error.
func (s *Service) RecordCrossing(ctx context.Context, userA, userB string, now time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "crossings.Service.RecordCrossing")
	defer span.End()

	cutoff := now.Add(-s.config.Cooldown)
	path, counted, err := s.paths.Increment(ctx, userA, userB, now, cutoff)
	if err != nil {
		return false, err
	}
	if !counted {
		return false, nil
	}

	metrics.CrossingsTotal.Inc()

	s.publish(ctx, &kafka.CrossedPathEvent{
		EventType: "crossed",
		PairID:    path.ID,
		UserAID:   path.UserAID,
		UserBID:   path.UserBID,
		Count:     path.Count,
		Timestamp: now,
	})

	if path.Count >= s.config.UnlockThreshold && path.UnlockExpiresAt == nil {
		expiresAt := now.Add(s.config.UnlockWindow)
		armed, err := s.paths.ArmUnlock(ctx, path.ID, expiresAt)
		if err != nil {
			return true, err
		}
		if armed {
			metrics.UnlocksTotal.Inc()
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"pair_id": path.ID,
				"count":   path.Count,
			}).Info("Pair reached unlock threshold")

			s.publish(ctx, &kafka.CrossedPathEvent{
				EventType:       "unlocked",
				PairID:          path.ID,
				UserAID:         path.UserAID,
				UserBID:         path.UserBID,
				Count:           path.Count,
				UnlockExpiresAt: &expiresAt,
				Timestamp:       now,
			})
		}
	}

	return true, nil
}

// GetCrossedPaths returns the user's pair counters as display views,
// most recent crossing first
func (s *Service) GetCrossedPaths(ctx context.Context, userID string, now time.Time, limit int) ([]models.CrossedPathView, error) {
	ctx, span := tracing.StartSpan(ctx, "crossings.Service.GetCrossedPaths")
	defer span.End()

	paths, err := s.paths.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.CrossedPathView, 0, len(paths))
	for _, path := range paths {
		other, err := s.users.Get(ctx, path.OtherUser(userID))
		if err != nil {
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
				// Other side deleted their account, hide the pair
				continue
			}
			return nil, err
		}

		views = append(views, models.CrossedPathView{
			ID:                  path.ID,
			Count:               path.Count,
			LastCrossedAt:       path.LastCrossedAt,
			IsUnlocked:          path.IsUnlocked(now),
			UnlockExpiresAt:     path.UnlockExpiresAt,
			UnlockTimeRemaining: formatRemaining(path.UnlockExpiresAt, now),
			ProgressToUnlock:    s.progress(path.Count),
			User: models.PairUserView{
				ID:         other.ID,
				Name:       other.Name,
				Age:        other.Age(now),
				PhotoURL:   other.PhotoURL,
				IsVerified: other.IsVerified(),
			},
		})
	}

	return views, nil
}

// CheckUnlock reports the unlock state for a pair. A pair that never
// crossed reports a zero count rather than an error.
func (s *Service) CheckUnlock(ctx context.Context, userA, userB string, now time.Time) (*models.UnlockStatus, error) {
	ctx, span := tracing.StartSpan(ctx, "crossings.Service.CheckUnlock")
	defer span.End()

	path, err := s.paths.GetByPair(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return &models.UnlockStatus{}, nil
	}

	return &models.UnlockStatus{
		IsUnlocked:          path.IsUnlocked(now),
		Count:               path.Count,
		UnlockExpiresAt:     path.UnlockExpiresAt,
		UnlockTimeRemaining: formatRemaining(path.UnlockExpiresAt, now),
	}, nil
}

// Count returns how many pairs the user has crossed with
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "crossings.Service.Count")
	defer span.End()

	return s.paths.CountByUser(ctx, userID)
}

func (s *Service) progress(count int) float64 {
	p := float64(count) / float64(s.config.UnlockThreshold)
	if p > 1 {
		return 1
	}
	return p
}

// publish emits an event without failing the crossing. Counters are the
// source of truth, events are advisory.
func (s *Service) publish(ctx context.Context, event *kafka.CrossedPathEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCrossedPathEvent(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
			"pair_id":    event.PairID,
		}).Warn("Failed to publish crossing event")
	}
}

func formatRemaining(expiresAt *time.Time, now time.Time) string {
	if expiresAt == nil || !expiresAt.After(now) {
		return ""
	}
	return expiresAt.Sub(now).Truncate(time.Second).String()
}
