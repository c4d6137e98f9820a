// Package markers projects published locations into map markers
package markers

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// UserSource resolves the requesting user
type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Matcher scans published locations around a reference point
type Matcher interface {
	FindNearbyPublished(ctx context.Context, subject *models.User, refLat, refLng float64, now time.Time) ([]models.User, error)
}

// Service implements the nearby map read path
type Service struct {
	logger  ectologger.Logger
	users   UserSource
	matcher Matcher
}

// NewService creates a new marker service
func NewService(logger ectologger.Logger, users UserSource, matcher Matcher) *Service {
	return &Service{
		logger:  logger,
		users:   users,
		matcher: matcher,
	}
}

// Nearby returns map markers for users around the requester. The reference
// point is the requester's published location when one exists, their raw
// location otherwise. Only other users' published projections are scanned.
func (s *Service) Nearby(ctx context.Context, userID string, now time.Time) ([]models.NearbyUser, error) {
	ctx, span := tracing.StartSpan(ctx, "markers.Service.Nearby")
	defer span.End()

	subject, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The map read path requires verification on both sides, not just for
	// the candidates.
	if !subject.IsVerified() {
		return []models.NearbyUser{}, nil
	}

	var refLat, refLng float64
	switch {
	case subject.HasPublishedLocation():
		refLat, refLng = *subject.PublishedLat, *subject.PublishedLng
	case subject.HasRawLocation():
		refLat, refLng = *subject.Latitude, *subject.Longitude
	default:
		return []models.NearbyUser{}, nil
	}

	start := time.Now()
	candidates, err := s.matcher.FindNearbyPublished(ctx, subject, refLat, refLng, now)
	if err != nil {
		return nil, err
	}
	metrics.RecordScan("nearby", time.Since(start).Seconds())

	markers := make([]models.NearbyUser, 0, len(candidates))
	for _, c := range candidates {
		freshness, visible := models.ClassifyFreshness(*c.PublishedAt, now)
		if !visible {
			continue
		}

		markers = append(markers, models.NearbyUser{
			ID:           c.ID,
			Name:         c.Name,
			Age:          c.Age(now),
			PublishedLat: *c.PublishedLat,
			PublishedLng: *c.PublishedLng,
			Freshness:    freshness,
			PhotoURL:     c.PhotoURL,
			IsVerified:   c.IsVerified(),
			HideDistance: c.HideDistance,
		})
	}

	return markers, nil
}
