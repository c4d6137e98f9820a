// Package locations implements raw location ingest and the published projection
package locations

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// UserStore persists user location state
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateRawLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error
	UpdatePublishedLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error
}

// Matcher scans raw locations around a subject on the ingest path
type Matcher interface {
	FindNearbyRaw(ctx context.Context, subject *models.User, now time.Time) ([]models.User, error)
}

// CrossingRecorder counts a crossing for a pair
type CrossingRecorder interface {
	RecordCrossing(ctx context.Context, userA, userB string, now time.Time) (bool, error)
}

// HistoryRecorder writes a displayable encounter for a pair
type HistoryRecorder interface {
	Record(ctx context.Context, subject, other *models.User, now time.Time) (bool, error)
}

// ServiceConfig contains configuration for the location service
type ServiceConfig struct {
	MinInterval     time.Duration // Minimum gap between accepted raw updates (default: 30m)
	PublishInterval time.Duration // Minimum gap between published snapshots (default: 6h)
}

// DefaultConfig returns default location service configuration
func DefaultConfig() ServiceConfig {
	return ServiceConfig{
		MinInterval:     30 * time.Minute,
		PublishInterval: 6 * time.Hour,
	}
}

// Service implements location ingest and publishing
type Service struct {
	logger    ectologger.Logger
	users     UserStore
	matcher   Matcher
	crossings CrossingRecorder
	history   HistoryRecorder
	config    ServiceConfig
}

// NewService creates a new location service
func NewService(
	logger ectologger.Logger,
	users UserStore,
	matcher Matcher,
	crossings CrossingRecorder,
	history HistoryRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		logger:    logger,
		users:     users,
		matcher:   matcher,
		crossings: crossings,
		history:   history,
		config:    config,
	}
}

// RecordLocation ingests one raw location sample. Updates inside the
// minimum interval are acknowledged and skipped rather than rejected, a
// phone resending its position is steady state.
func (s *Service) RecordLocation(ctx context.Context, userID string, lat, lng float64, now time.Time) (*models.RecordLocationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "locations.Service.RecordLocation")
	defer span.End()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			return &models.RecordLocationResult{Success: false, Reason: models.ReasonUserNotFound}, nil
		}
		return nil, err
	}

	if user.LastLocationUpdatedAt != nil && now.Sub(*user.LastLocationUpdatedAt) < s.config.MinInterval {
		return &models.RecordLocationResult{
			Success: true,
			Skipped: true,
			Reason:  models.ReasonRateLimited,
		}, nil
	}

	if err := s.users.UpdateRawLocation(ctx, userID, lat, lng, now); err != nil {
		return nil, err
	}
	user.Latitude = &lat
	user.Longitude = &lng
	user.LastLocationUpdatedAt = &now

	// Unverified users can store their own location but never match
	if !user.IsVerified() {
		return &models.RecordLocationResult{
			Success: true,
			Reason:  models.ReasonNotVerified,
		}, nil
	}

	start := time.Now()
	matches, err := s.matcher.FindNearbyRaw(ctx, user, now)
	if err != nil {
		return nil, err
	}
	metrics.RecordScan("ingest", time.Since(start).Seconds())

	for i := range matches {
		if _, err := s.crossings.RecordCrossing(ctx, user.ID, matches[i].ID, now); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"user_id":  user.ID,
				"other_id": matches[i].ID,
			}).Error("Failed to record crossing")
			continue
		}

		// History keeps its own dedupe window, it moves independently of
		// the pair counter's cooldown
		if _, err := s.history.Record(ctx, user, &matches[i], now); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"user_id":  user.ID,
				"other_id": matches[i].ID,
			}).Error("Failed to record encounter history")
		}
	}

	return &models.RecordLocationResult{
		Success:     true,
		NearbyCount: len(matches),
	}, nil
}

// PublishLocation snapshots the user's position into the published
// projection, the only coordinate other users ever see
func (s *Service) PublishLocation(ctx context.Context, userID string, lat, lng float64, now time.Time) (*models.PublishLocationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "locations.Service.PublishLocation")
	defer span.End()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			return &models.PublishLocationResult{Success: false, Reason: models.ReasonUserNotFound}, nil
		}
		return nil, err
	}

	if user.PublishedAt != nil && now.Sub(*user.PublishedAt) < s.config.PublishInterval {
		next := user.PublishedAt.Add(s.config.PublishInterval)
		return &models.PublishLocationResult{
			Success:       true,
			Published:     false,
			Reason:        models.ReasonPublishCooldown,
			PublishedAt:   user.PublishedAt,
			NextPublishAt: &next,
		}, nil
	}

	if err := s.users.UpdatePublishedLocation(ctx, userID, lat, lng, now); err != nil {
		return nil, err
	}

	next := now.Add(s.config.PublishInterval)
	return &models.PublishLocationResult{
		Success:       true,
		Published:     true,
		PublishedAt:   &now,
		NextPublishAt: &next,
	}, nil
}
