package alertevent

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

const eventColumns = "id, subject_user_id, candidate_user_id, created_at, expires_at"

// createGuardedQuery inserts the event only when the subject has no event
// inside the cooldown window. Folding the window check into the insert
// closes the window between reading the latest event and writing a new one,
// the same way the pair counter folds its cooldown into the increment.
const createGuardedQuery = `
INSERT INTO crossed_alert_events (id, subject_user_id, candidate_user_id, created_at, expires_at)
SELECT $1, $2, $3, $4, $5
WHERE NOT EXISTS (
	SELECT 1 FROM crossed_alert_events
	WHERE subject_user_id = $2 AND created_at > $6
)`

const deleteExpiredQuery = `
DELETE FROM crossed_alert_events
WHERE id IN (
	SELECT id FROM crossed_alert_events
	WHERE expires_at <= $1
	LIMIT $2
)`

// Repository handles crossed alert event persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new alert event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateIfSubjectIdle inserts a new alert event unless the subject already
// has one created after since. Returns false when the cooldown guard blocked
// the insert, including when a concurrent insert won the race.
func (r *Repository) CreateIfSubjectIdle(ctx context.Context, event *models.CrossedAlertEvent, since time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "alertevent.Repository.CreateIfSubjectIdle")
	defer span.End()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	res, err := r.db.ExecContext(ctx, createGuardedQuery,
		event.ID, event.SubjectUserID, event.CandidateUserID, event.CreatedAt, event.ExpiresAt, since)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": event.ID}).Error("Failed to create alert event")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create alert event")
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create alert event")
	}

	return inserted > 0, nil
}

// LatestForSubject returns the subject's most recent alert event, or nil
// when the subject has never triggered one.
func (r *Repository) LatestForSubject(ctx context.Context, subjectUserID string) (*models.CrossedAlertEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "alertevent.Repository.LatestForSubject")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(eventColumns)
	sb.From("crossed_alert_events")
	sb.Where(sb.Equal("subject_user_id", subjectUserID))
	sb.OrderBy("created_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()
	var event models.CrossedAlertEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get latest alert event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest alert event")
	}

	return &event, nil
}

// ExistsRecentForPair reports whether the subject already alerted on this
// candidate since the given time. The pair is directional, a mirrored
// alert for the candidate does not count.
func (r *Repository) ExistsRecentForPair(ctx context.Context, subjectUserID, candidateUserID string, since time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "alertevent.Repository.ExistsRecentForPair")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("crossed_alert_events")
	sb.Where(
		sb.Equal("subject_user_id", subjectUserID),
		sb.Equal("candidate_user_id", candidateUserID),
		sb.GreaterThan("created_at", since),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check recent alert event")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check alert events")
	}

	return count > 0, nil
}

// DeleteExpired removes a bounded batch of events past their expiry
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "alertevent.Repository.DeleteExpired")
	defer span.End()

	res, err := r.db.ExecContext(ctx, deleteExpiredQuery, now, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete expired alert events")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete expired alert events")
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete expired alert events")
	}

	return deleted, nil
}
