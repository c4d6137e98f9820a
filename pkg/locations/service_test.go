package locations

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

type fakeUserStore struct {
	users          map[string]*models.User
	rawUpdates     []string
	publishUpdates []string
}

func (f *fakeUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return u, nil
}

func (f *fakeUserStore) UpdateRawLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error {
	f.rawUpdates = append(f.rawUpdates, id)
	return nil
}

func (f *fakeUserStore) UpdatePublishedLocation(ctx context.Context, id string, lat, lng float64, now time.Time) error {
	f.publishUpdates = append(f.publishUpdates, id)
	return nil
}

type fakeMatcher struct {
	matches []models.User
	called  bool
}

func (f *fakeMatcher) FindNearbyRaw(ctx context.Context, subject *models.User, now time.Time) ([]models.User, error) {
	f.called = true
	return f.matches, nil
}

type pair struct{ a, b string }

type fakeCrossings struct {
	recorded []pair
}

func (f *fakeCrossings) RecordCrossing(ctx context.Context, userA, userB string, now time.Time) (bool, error) {
	f.recorded = append(f.recorded, pair{userA, userB})
	return true, nil
}

type fakeHistory struct {
	recorded []pair
}

func (f *fakeHistory) Record(ctx context.Context, subject, other *models.User, now time.Time) (bool, error) {
	f.recorded = append(f.recorded, pair{subject.ID, other.ID})
	return true, nil
}

func verifiedUser(id string) *models.User {
	return &models.User{
		ID:                 id,
		Name:               id,
		Category:           "runner",
		Interests:          []string{"runner"},
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
	}
}

func TestRecordLocationFullFlow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	alice := verifiedUser("alice")
	lat, lng := 37.0005, -122.0
	at := now.Add(-10 * time.Minute)
	alice.Latitude, alice.Longitude, alice.LastLocationUpdatedAt = &lat, &lng, &at

	users := &fakeUserStore{users: map[string]*models.User{"bob": verifiedUser("bob")}}
	matcher := &fakeMatcher{matches: []models.User{*alice}}
	crossings := &fakeCrossings{}
	history := &fakeHistory{}
	svc := NewService(testLogger(), users, matcher, crossings, history, DefaultConfig())

	result, err := svc.RecordLocation(context.Background(), "bob", 37.0, -122.0, now)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.NearbyCount)

	assert.Equal(t, []string{"bob"}, users.rawUpdates)
	require.Len(t, crossings.recorded, 1)
	assert.Equal(t, pair{"bob", "alice"}, crossings.recorded[0])
	require.Len(t, history.recorded, 1)
	assert.Equal(t, pair{"bob", "alice"}, history.recorded[0])
}

func TestRecordLocationRateLimited(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	bob := verifiedUser("bob")
	at := now.Add(-29 * time.Minute)
	bob.LastLocationUpdatedAt = &at

	users := &fakeUserStore{users: map[string]*models.User{"bob": bob}}
	matcher := &fakeMatcher{}
	svc := NewService(testLogger(), users, matcher, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

	result, err := svc.RecordLocation(context.Background(), "bob", 37.0, -122.0, now)
	require.NoError(t, err)

	// Throttled updates are acknowledged, not rejected
	assert.True(t, result.Success)
	assert.True(t, result.Skipped)
	assert.Equal(t, models.ReasonRateLimited, result.Reason)
	assert.Empty(t, users.rawUpdates)
	assert.False(t, matcher.called)
}

func TestRecordLocationIntervalElapsed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	bob := verifiedUser("bob")
	at := now.Add(-31 * time.Minute)
	bob.LastLocationUpdatedAt = &at

	users := &fakeUserStore{users: map[string]*models.User{"bob": bob}}
	svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

	result, err := svc.RecordLocation(context.Background(), "bob", 37.0, -122.0, now)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, []string{"bob"}, users.rawUpdates)
}

func TestRecordLocationUserNotFound(t *testing.T) {
	users := &fakeUserStore{users: map[string]*models.User{}}
	svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

	result, err := svc.RecordLocation(context.Background(), "ghost", 37.0, -122.0, time.Now())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonUserNotFound, result.Reason)
}

func TestRecordLocationUnverifiedStoresButNeverMatches(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	bob := verifiedUser("bob")
	bob.VerificationStatus = models.VerificationPending

	users := &fakeUserStore{users: map[string]*models.User{"bob": bob}}
	matcher := &fakeMatcher{}
	crossings := &fakeCrossings{}
	svc := NewService(testLogger(), users, matcher, crossings, &fakeHistory{}, DefaultConfig())

	result, err := svc.RecordLocation(context.Background(), "bob", 37.0, -122.0, now)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.ReasonNotVerified, result.Reason)
	assert.Equal(t, 0, result.NearbyCount)

	// Location is stored for the user's own benefit
	assert.Equal(t, []string{"bob"}, users.rawUpdates)
	assert.False(t, matcher.called)
	assert.Empty(t, crossings.recorded)
}

func TestPublishLocation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("first publish", func(t *testing.T) {
		users := &fakeUserStore{users: map[string]*models.User{"bob": verifiedUser("bob")}}
		svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

		result, err := svc.PublishLocation(context.Background(), "bob", 37.0, -122.0, now)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.True(t, result.Published)
		require.NotNil(t, result.PublishedAt)
		assert.Equal(t, now, *result.PublishedAt)
		require.NotNil(t, result.NextPublishAt)
		assert.Equal(t, now.Add(6*time.Hour), *result.NextPublishAt)
		assert.Equal(t, []string{"bob"}, users.publishUpdates)
	})

	t.Run("inside the cooldown", func(t *testing.T) {
		bob := verifiedUser("bob")
		publishedAt := now.Add(-5 * time.Hour)
		bob.PublishedAt = &publishedAt

		users := &fakeUserStore{users: map[string]*models.User{"bob": bob}}
		svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

		result, err := svc.PublishLocation(context.Background(), "bob", 37.0, -122.0, now)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.False(t, result.Published)
		assert.Equal(t, models.ReasonPublishCooldown, result.Reason)
		require.NotNil(t, result.NextPublishAt)
		assert.Equal(t, publishedAt.Add(6*time.Hour), *result.NextPublishAt)
		assert.Empty(t, users.publishUpdates)
	})

	t.Run("cooldown elapsed", func(t *testing.T) {
		bob := verifiedUser("bob")
		publishedAt := now.Add(-7 * time.Hour)
		bob.PublishedAt = &publishedAt

		users := &fakeUserStore{users: map[string]*models.User{"bob": bob}}
		svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

		result, err := svc.PublishLocation(context.Background(), "bob", 37.0, -122.0, now)
		require.NoError(t, err)

		assert.True(t, result.Published)
		assert.Equal(t, []string{"bob"}, users.publishUpdates)
	})

	t.Run("user not found", func(t *testing.T) {
		users := &fakeUserStore{users: map[string]*models.User{}}
		svc := NewService(testLogger(), users, &fakeMatcher{}, &fakeCrossings{}, &fakeHistory{}, DefaultConfig())

		result, err := svc.PublishLocation(context.Background(), "ghost", 37.0, -122.0, now)
		require.NoError(t, err)

		assert.False(t, result.Success)
		assert.Equal(t, models.ReasonUserNotFound, result.Reason)
	})
}
