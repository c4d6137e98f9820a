package user

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const userColumns = "id, name, photo_url, date_of_birth, city, category, interests, verification_status, is_active, hide_distance, latitude, longitude, last_location_updated_at, published_lat, published_lng, published_at, created_at, updated_at"

// Repository handles user location facet persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a user by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(userColumns)
	sb.From("users")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "user %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id}).Error("Failed to get user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}

	return &user, nil
}

// ListActive returns every active user except the given one. Verification,
// staleness, radius and preference filters are applied by the caller; this is
// the full-table candidate scan.
func (r *Repository) ListActive(ctx context.Context, excludeID string) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.ListActive")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(userColumns)
	sb.From("users")
	sb.Where(
		sb.NotEqual("id", excludeID),
		sb.Equal("is_active", true),
	)

	query, args := sb.Build()
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active users")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list users")
	}

	return users, nil
}

// UpdateRawLocation overwrites the raw coordinates and their timestamp
func (r *Repository) UpdateRawLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.UpdateRawLocation")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("users")
	ub.Set(
		ub.Assign("latitude", lat),
		ub.Assign("longitude", lng),
		ub.Assign("last_location_updated_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id}).Error("Failed to update raw location")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update location")
	}

	return nil
}

// UpdatePublishedLocation overwrites the published projection
func (r *Repository) UpdatePublishedLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.UpdatePublishedLocation")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("users")
	ub.Set(
		ub.Assign("published_lat", lat),
		ub.Assign("published_lng", lng),
		ub.Assign("published_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id}).Error("Failed to update published location")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update published location")
	}

	return nil
}
