package block

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository answers bidirectional block lookups. Block writes belong to the
// safety service; clover only ever reads.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new block repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// IsBlockedEither reports whether either user has blocked the other
func (r *Repository) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "block.Repository.IsBlockedEither")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("blocks")
	sb.Where(
		sb.Or(
			sb.And(sb.Equal("blocker_id", userA), sb.Equal("blocked_id", userB)),
			sb.And(sb.Equal("blocker_id", userB), sb.Equal("blocked_id", userA)),
		),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check block relationship")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check block relationship")
	}

	return count > 0, nil
}
