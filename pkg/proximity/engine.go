// Package proximity implements the crossed paths candidate matcher
package proximity

import (
	"context"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/geo"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// UserSource provides the users considered for matching
type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
	ListActive(ctx context.Context, excludeID string) ([]models.User, error)
}

// BlockChecker reports whether either user has blocked the other
type BlockChecker interface {
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)
}

// EngineConfig contains configuration for the proximity engine
type EngineConfig struct {
	RadiusMeters float64       // Maximum distance to consider a crossing (default: 1000)
	MaxStaleness time.Duration // Locations older than this never match (default: 6 days)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		RadiusMeters: 1000,
		MaxStaleness: 6 * 24 * time.Hour,
	}
}

// Engine finds eligible users near a reference point
type Engine struct {
	logger ectologger.Logger
	users  UserSource
	blocks BlockChecker
	config EngineConfig
}

// NewEngine creates a new proximity engine
func NewEngine(logger ectologger.Logger, users UserSource, blocks BlockChecker, config EngineConfig) *Engine {
	return &Engine{
		logger: logger,
		users:  users,
		blocks: blocks,
		config: config,
	}
}

// FindNearbyRaw finds candidates within range of the subject's raw location.
// Both sides must be verified and active, and both raw locations must be
// within the staleness window. Used on the ingest path only.
func (e *Engine) FindNearbyRaw(ctx context.Context, subject *models.User, now time.Time) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "proximity.Engine.FindNearbyRaw")
	defer span.End()

	if !subject.HasRawLocation() || !subject.IsVerified() {
		return nil, nil
	}

	candidates, err := e.users.ListActive(ctx, subject.ID)
	if err != nil {
		return nil, err
	}

	eligible := ectolinq.Filter(candidates, func(c models.User) bool {
		if !c.IsVerified() || !c.HasRawLocation() {
			return false
		}
		if e.tooStale(c.LastLocationUpdatedAt, now) {
			return false
		}
		if !geo.WithinRadius(*subject.Latitude, *subject.Longitude, *c.Latitude, *c.Longitude, e.config.RadiusMeters) {
			return false
		}
		return mutualPreference(subject, &c)
	})

	return e.filterBlocked(ctx, subject.ID, eligible)
}

// FindNearbyPublished finds candidates within range of the given reference
// point, considering only published locations. Raw locations are never
// exposed to other users on read paths.
func (e *Engine) FindNearbyPublished(ctx context.Context, subject *models.User, refLat, refLng float64, now time.Time) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "proximity.Engine.FindNearbyPublished")
	defer span.End()

	candidates, err := e.users.ListActive(ctx, subject.ID)
	if err != nil {
		return nil, err
	}

	eligible := ectolinq.Filter(candidates, func(c models.User) bool {
		if !c.IsVerified() || !c.HasPublishedLocation() {
			return false
		}
		if e.tooStale(c.PublishedAt, now) {
			return false
		}
		if !geo.WithinRadius(refLat, refLng, *c.PublishedLat, *c.PublishedLng, e.config.RadiusMeters) {
			return false
		}
		return mutualPreference(subject, &c)
	})

	return e.filterBlocked(ctx, subject.ID, eligible)
}

// filterBlocked drops candidates where a block exists in either direction
func (e *Engine) filterBlocked(ctx context.Context, subjectID string, candidates []models.User) ([]models.User, error) {
	result := make([]models.User, 0, len(candidates))
	for _, c := range candidates {
		blocked, err := e.blocks.IsBlockedEither(ctx, subjectID, c.ID)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (e *Engine) tooStale(at *time.Time, now time.Time) bool {
	if at == nil {
		return true
	}
	return now.Sub(*at) > e.config.MaxStaleness
}

// mutualPreference requires that each user's category is one the other
// has opted into seeing
func mutualPreference(a, b *models.User) bool {
	return a.WantsCategory(b.Category) && b.WantsCategory(a.Category)
}
