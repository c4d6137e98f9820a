package encounters

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeHistoryStore struct {
	recent     bool
	created    []*models.EncounterHistoryEntry
	lastSince  time.Time
	lastKeep   int
	listResult []models.EncounterHistoryEntry
}

func (f *fakeHistoryStore) RecordEncounter(ctx context.Context, entry *models.EncounterHistoryEntry, since time.Time, keep int) (bool, error) {
	f.lastSince = since
	f.lastKeep = keep
	if f.recent {
		return false, nil
	}
	f.created = append(f.created, entry)
	return true, nil
}

func (f *fakeHistoryStore) ListForUser(ctx context.Context, userID string, now time.Time, limit int) ([]models.EncounterHistoryEntry, error) {
	return f.listResult, nil
}

type fakeUserSource struct {
	users map[string]*models.User
}

func (f *fakeUserSource) Get(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return u, nil
}

func strptr(s string) *string {
	return &s
}

func TestRecordCreatesEntry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeHistoryStore{}
	svc := NewService(testLogger(), store, &fakeUserSource{}, DefaultConfig())

	subject := &models.User{ID: "bob", Name: "Bob"}
	other := &models.User{ID: "alice", Name: "Alice", City: strptr("Austin")}

	created, err := svc.Record(context.Background(), subject, other, now)
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, store.created, 1)
	entry := store.created[0]

	// Pair is stored canonically regardless of argument order
	assert.Equal(t, "alice", entry.UserAID)
	assert.Equal(t, "bob", entry.UserBID)
	assert.Equal(t, "Near Austin", entry.AreaName)
	assert.Equal(t, now.Add(14*24*time.Hour), entry.ExpiresAt)

	// The dedupe cutoff and the per-user cap ride along with the write
	assert.Equal(t, now.Add(-24*time.Hour), store.lastSince)
	assert.Equal(t, 15, store.lastKeep)
}

func TestRecordDedupeWindow(t *testing.T) {
	store := &fakeHistoryStore{recent: true}
	svc := NewService(testLogger(), store, &fakeUserSource{}, DefaultConfig())

	created, err := svc.Record(context.Background(), &models.User{ID: "a"}, &models.User{ID: "b"}, time.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, store.created)
}

func TestAreaNameFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		subject  *models.User
		other    *models.User
		expected string
	}{
		{
			name:     "other user's city wins",
			subject:  &models.User{ID: "a", City: strptr("Dallas")},
			other:    &models.User{ID: "b", City: strptr("Austin")},
			expected: "Near Austin",
		},
		{
			name:     "subject city when other has none",
			subject:  &models.User{ID: "a", City: strptr("Dallas")},
			other:    &models.User{ID: "b"},
			expected: "Near Dallas",
		},
		{
			name:     "generic label when neither has a city",
			subject:  &models.User{ID: "a"},
			other:    &models.User{ID: "b", City: strptr("")},
			expected: "Nearby",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, areaName(tt.subject, tt.other))
		})
	}
}

func TestHistoryViews(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeHistoryStore{
		listResult: []models.EncounterHistoryEntry{
			{ID: "e1", UserAID: "alice", UserBID: "bob", AreaName: "Near Austin", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(13 * 24 * time.Hour)},
			{ID: "e2", UserAID: "alice", UserBID: "ghost", AreaName: "Nearby", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(13 * 24 * time.Hour)},
		},
	}
	users := &fakeUserSource{users: map[string]*models.User{
		"bob": {ID: "bob", Name: "bob lee", PhotoURL: strptr("https://example.com/bob.jpg")},
	}}
	svc := NewService(testLogger(), store, users, DefaultConfig())

	views, err := svc.History(context.Background(), "alice", now, 0)
	require.NoError(t, err)

	// The entry whose other side was deleted is dropped
	require.Len(t, views, 1)
	assert.Equal(t, "e1", views[0].ID)
	assert.Equal(t, "bob", views[0].OtherUserID)
	assert.Equal(t, "Near Austin", views[0].AreaName)
	assert.Equal(t, "B", views[0].Initial)
	require.NotNil(t, views[0].PhotoURL)
}

func TestInitial(t *testing.T) {
	assert.Equal(t, "A", initial("alice"))
	assert.Equal(t, "Z", initial("  zoe  "))
	assert.Equal(t, "", initial(""))
	assert.Equal(t, "É", initial("élodie"))
}
