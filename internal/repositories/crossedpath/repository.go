package crossedpath

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const pathColumns = "id, user_a_id, user_b_id, count, last_crossed_at, unlock_expires_at, created_at, updated_at"

// incrementQuery creates the pair row or bumps its counter in one statement.
// The WHERE on the conflict arm enforces the 24h pair cooldown: when the
// cooldown is still running no row is touched and no row is returned, which
// also closes the concurrent lost-update window on count.
const incrementQuery = `
INSERT INTO crossed_paths (id, user_a_id, user_b_id, count, last_crossed_at, created_at, updated_at)
VALUES ($1, $2, $3, 1, $4, $4, $4)
ON CONFLICT (user_a_id, user_b_id) DO UPDATE
SET count = crossed_paths.count + 1, last_crossed_at = EXCLUDED.last_crossed_at, updated_at = EXCLUDED.updated_at
WHERE crossed_paths.last_crossed_at <= $5
RETURNING id, user_a_id, user_b_id, count, last_crossed_at, unlock_expires_at, created_at, updated_at`

// Repository handles crossed path pair persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new crossed path repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByPair retrieves the pair record for two users in either order.
// Returns nil when the pair has never crossed.
func (r *Repository) GetByPair(ctx context.Context, userA, userB string) (*models.CrossedPath, error) {
	ctx, span := tracing.StartSpan(ctx, "crossedpath.Repository.GetByPair")
	defer span.End()

	a, b := models.CanonicalPair(userA, userB)

	sb := database.NewSelectBuilder()
	sb.Select(pathColumns)
	sb.From("crossed_paths")
	sb.Where(
		sb.Equal("user_a_id", a),
		sb.Equal("user_b_id", b),
	)

	query, args := sb.Build()
	var path models.CrossedPath
	if err := r.db.GetContext(ctx, &path, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get crossed path")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get crossed path")
	}

	return &path, nil
}

// Increment counts one crossing for the pair, creating the row on first
// contact. When the pair's last crossing is newer than cutoff the statement
// does nothing and counted is false.
func (r *Repository) Increment(ctx context.Context, userA, userB string, now, cutoff time.Time) (*models.CrossedPath, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "crossedpath.Repository.Increment")
	defer span.End()

	a, b := models.CanonicalPair(userA, userB)

	var path models.CrossedPath
	err := r.db.GetContext(ctx, &path, incrementQuery, uuid.New().String(), a, b, now, cutoff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// cooldown still active
			return nil, false, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_a_id": a, "user_b_id": b}).Error("Failed to increment crossed path")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment crossed path")
	}

	return &path, true, nil
}

// ArmUnlock sets the unlock window on a pair if one was never set before.
// Returns false when the pair already had an unlock window; the guard makes
// the unlock one-shot even under concurrent increments.
func (r *Repository) ArmUnlock(ctx context.Context, pairID string, expiresAt time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "crossedpath.Repository.ArmUnlock")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("crossed_paths")
	ub.Set(
		ub.Assign("unlock_expires_at", expiresAt),
		ub.Assign("updated_at", expiresAt),
	)
	ub.Where(
		ub.Equal("id", pairID),
		ub.IsNull("unlock_expires_at"),
	)

	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pair_id": pairID}).Error("Failed to arm unlock")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to arm unlock")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to arm unlock")
	}

	return affected > 0, nil
}

// ListByUser returns the user's pair records, most recently crossed first
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]models.CrossedPath, error) {
	ctx, span := tracing.StartSpan(ctx, "crossedpath.Repository.ListByUser")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(pathColumns)
	sb.From("crossed_paths")
	sb.Where(
		sb.Or(
			sb.Equal("user_a_id", userID),
			sb.Equal("user_b_id", userID),
		),
	)
	sb.OrderBy("last_crossed_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var paths []models.CrossedPath
	if err := r.db.SelectContext(ctx, &paths, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list crossed paths")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list crossed paths")
	}

	return paths, nil
}

// CountByUser returns how many pairs the user has crossed with
func (r *Repository) CountByUser(ctx context.Context, userID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "crossedpath.Repository.CountByUser")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("crossed_paths")
	sb.Where(
		sb.Or(
			sb.Equal("user_a_id", userID),
			sb.Equal("user_b_id", userID),
		),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count crossed paths")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count crossed paths")
	}

	return count, nil
}
