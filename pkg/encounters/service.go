// Package encounters keeps the displayable "you crossed paths near X" feed
package encounters

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// HistoryStore persists encounter history entries
type HistoryStore interface {
	RecordEncounter(ctx context.Context, entry *models.EncounterHistoryEntry, since time.Time, keep int) (bool, error)
	ListForUser(ctx context.Context, userID string, now time.Time, limit int) ([]models.EncounterHistoryEntry, error)
}

// UserSource resolves the profile shown for the other side of an encounter
type UserSource interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// ServiceConfig contains configuration for the history service
type ServiceConfig struct {
	DedupeWindow time.Duration // Minimum gap between entries for a pair (default: 24h)
	TTL          time.Duration // How long an entry stays visible (default: 14 days)
	MaxPerUser   int           // Per-user cap enforced at write time (default: 15)
}

// DefaultConfig returns default history configuration
func DefaultConfig() ServiceConfig {
	return ServiceConfig{
		DedupeWindow: 24 * time.Hour,
		TTL:          14 * 24 * time.Hour,
		MaxPerUser:   15,
	}
}

// Service implements encounter history
type Service struct {
	logger  ectologger.Logger
	entries HistoryStore
	users   UserSource
	config  ServiceConfig
}

// NewService creates a new history service
func NewService(logger ectologger.Logger, entries HistoryStore, users UserSource, config ServiceConfig) *Service {
	return &Service{
		logger:  logger,
		entries: entries,
		users:   users,
		config:  config,
	}
}

// Record writes one history entry for the pair unless one already exists
// inside the dedupe window. The window is tracked separately from the pair
// counter's cooldown, the two gates move independently.
func (s *Service) Record(ctx context.Context, subject, other *models.User, now time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "encounters.Service.Record")
	defer span.End()

	a, b := models.CanonicalPair(subject.ID, other.ID)
	entry := &models.EncounterHistoryEntry{
		UserAID:   a,
		UserBID:   b,
		AreaName:  areaName(subject, other),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.TTL),
	}

	// The store deduplicates, inserts, and enforces the per-user cap for
	// both sides in one transaction.
	return s.entries.RecordEncounter(ctx, entry, now.Add(-s.config.DedupeWindow), s.config.MaxPerUser)
}

// History returns the user's visible encounters, newest first
func (s *Service) History(ctx context.Context, userID string, now time.Time, limit int) ([]models.HistoryEntryView, error) {
	ctx, span := tracing.StartSpan(ctx, "encounters.Service.History")
	defer span.End()

	entries, err := s.entries.ListForUser(ctx, userID, now, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.HistoryEntryView, 0, len(entries))
	for _, entry := range entries {
		other, err := s.users.Get(ctx, entry.OtherUser(userID))
		if err != nil {
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
				continue
			}
			return nil, err
		}

		views = append(views, models.HistoryEntryView{
			ID:          entry.ID,
			OtherUserID: other.ID,
			AreaName:    entry.AreaName,
			CreatedAt:   entry.CreatedAt,
			PhotoURL:    other.PhotoURL,
			Initial:     initial(other.Name),
		})
	}

	return views, nil
}

// areaName builds the coarse display label for an encounter. City is the
// finest granularity ever shown, never a coordinate.
func areaName(subject, other *models.User) string {
	if other.City != nil && *other.City != "" {
		return "Near " + *other.City
	}
	if subject.City != nil && *subject.City != "" {
		return "Near " + *subject.City
	}
	return "Nearby"
}

func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(string([]rune(name)[0]))
}
