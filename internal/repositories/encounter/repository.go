package encounter

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const entryColumns = "id, user_a_id, user_b_id, area_name, created_at, expires_at"

// insertDedupedQuery inserts the entry only when the pair has no entry
// created after the dedupe cutoff. The window check and the insert are one
// statement so two concurrent recorders cannot both slip past the check.
const insertDedupedQuery = `
INSERT INTO encounter_history (id, user_a_id, user_b_id, area_name, created_at, expires_at)
SELECT $1, $2, $3, $4, $5, $6
WHERE NOT EXISTS (
	SELECT 1 FROM encounter_history
	WHERE user_a_id = $2 AND user_b_id = $3 AND created_at > $7
)`

// trimQuery deletes every history entry beyond the newest keep entries for
// one user, counting entries where the user is either side of the pair.
const trimQuery = `
DELETE FROM encounter_history
WHERE id IN (
	SELECT id FROM encounter_history
	WHERE user_a_id = $1 OR user_b_id = $1
	ORDER BY created_at DESC
	OFFSET $2
)`

// deleteExpiredQuery removes a bounded batch of expired entries
const deleteExpiredQuery = `
DELETE FROM encounter_history
WHERE id IN (
	SELECT id FROM encounter_history
	WHERE expires_at <= $1
	LIMIT $2
)`

// Repository handles encounter history persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new encounter history repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// RecordEncounter inserts one history entry for the pair unless one already
// exists after the dedupe cutoff, then enforces the per-user cap for both
// sides. Insert and trims run in one transaction so a failed trim never
// leaves an uncapped entry behind. Returns false when the dedupe window was
// still open.
func (r *Repository) RecordEncounter(ctx context.Context, entry *models.EncounterHistoryEntry, since time.Time, keep int) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "encounter.Repository.RecordEncounter")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	res, err := tx.ExecContext(ctx, insertDedupedQuery,
		entry.ID, entry.UserAID, entry.UserBID, entry.AreaName, entry.CreatedAt, entry.ExpiresAt, since)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entry_id": entry.ID}).Error("Failed to create history entry")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create history entry")
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create history entry")
	}
	if inserted == 0 {
		return false, nil
	}

	for _, userID := range []string{entry.UserAID, entry.UserBID} {
		if _, err := tx.ExecContext(ctx, trimQuery, userID, keep); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to trim history")
			return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to trim history")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to record encounter")
	}

	return true, nil
}

// ListForUser returns the user's non-expired entries, newest first
func (r *Repository) ListForUser(ctx context.Context, userID string, now time.Time, limit int) ([]models.EncounterHistoryEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "encounter.Repository.ListForUser")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(entryColumns)
	sb.From("encounter_history")
	sb.Where(
		sb.Or(
			sb.Equal("user_a_id", userID),
			sb.Equal("user_b_id", userID),
		),
		sb.GreaterThan("expires_at", now),
	)
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var entries []models.EncounterHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list history entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list history")
	}

	return entries, nil
}

// DeleteExpired removes a bounded batch of entries past their expiry
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "encounter.Repository.DeleteExpired")
	defer span.End()

	res, err := r.db.ExecContext(ctx, deleteExpiredQuery, now, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete expired history entries")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete expired history")
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete expired history")
	}

	return deleted, nil
}
