package markers

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

type fakeMatcher struct {
	candidates []models.User
	refLat     float64
	refLng     float64
	called     bool
}

func (f *fakeMatcher) FindNearbyPublished(ctx context.Context, subject *models.User, refLat, refLng float64, now time.Time) ([]models.User, error) {
	f.called = true
	f.refLat, f.refLng = refLat, refLng
	return f.candidates, nil
}

func publishedUser(id string, lat, lng float64, at time.Time) models.User {
	return models.User{
		ID:                 id,
		Name:               id,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
		PublishedLat:       &lat,
		PublishedLng:       &lng,
		PublishedAt:        &at,
	}
}

func TestNearbyFreshnessTiers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	subject := publishedUser("subject", 37.0, -122.0, now.Add(-time.Hour))
	solid := publishedUser("solid", 37.0005, -122.0, now.Add(-2*24*time.Hour))
	faded := publishedUser("faded", 37.0004, -122.0, now.Add(-5*24*time.Hour))

	matcher := &fakeMatcher{candidates: []models.User{solid, faded}}
	svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": &subject}}, matcher)

	markers, err := svc.Nearby(context.Background(), "subject", now)
	require.NoError(t, err)

	require.Len(t, markers, 2)
	assert.Equal(t, models.FreshnessSolid, markers[0].Freshness)
	assert.Equal(t, models.FreshnessFaded, markers[1].Freshness)
}

func TestNearbyReferencePoint(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("published location preferred", func(t *testing.T) {
		subject := publishedUser("subject", 37.0, -122.0, now.Add(-time.Hour))
		rawLat, rawLng := 40.0, -100.0
		subject.Latitude, subject.Longitude = &rawLat, &rawLng

		matcher := &fakeMatcher{}
		svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": &subject}}, matcher)

		_, err := svc.Nearby(context.Background(), "subject", now)
		require.NoError(t, err)
		assert.Equal(t, 37.0, matcher.refLat)
		assert.Equal(t, -122.0, matcher.refLng)
	})

	t.Run("raw fallback", func(t *testing.T) {
		rawLat, rawLng := 40.0, -100.0
		at := now.Add(-time.Hour)
		subject := &models.User{ID: "subject", VerificationStatus: models.VerificationVerified, Latitude: &rawLat, Longitude: &rawLng, LastLocationUpdatedAt: &at}

		matcher := &fakeMatcher{}
		svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": subject}}, matcher)

		_, err := svc.Nearby(context.Background(), "subject", now)
		require.NoError(t, err)
		assert.Equal(t, 40.0, matcher.refLat)
		assert.Equal(t, -100.0, matcher.refLng)
	})

	t.Run("no location at all", func(t *testing.T) {
		subject := &models.User{ID: "subject", VerificationStatus: models.VerificationVerified}

		matcher := &fakeMatcher{}
		svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": subject}}, matcher)

		markers, err := svc.Nearby(context.Background(), "subject", now)
		require.NoError(t, err)
		assert.Empty(t, markers)
		assert.False(t, matcher.called)
	})
}

func TestNearbyUnverifiedSubject(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	subject := publishedUser("subject", 37.0, -122.0, now.Add(-time.Hour))
	subject.VerificationStatus = models.VerificationPending

	matcher := &fakeMatcher{candidates: []models.User{publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": &subject}}, matcher)

	markers, err := svc.Nearby(context.Background(), "subject", now)
	require.NoError(t, err)
	assert.Empty(t, markers)
	assert.False(t, matcher.called)
}

func TestNearbyMarkerShape(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	dob := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	subject := publishedUser("subject", 37.0, -122.0, now.Add(-time.Hour))
	other := publishedUser("bob", 37.0005, -122.0, now.Add(-time.Hour))
	other.DateOfBirth = &dob
	other.HideDistance = true

	matcher := &fakeMatcher{candidates: []models.User{other}}
	svc := NewService(testLogger(), &fakeUserSource{users: map[string]*models.User{"subject": &subject}}, matcher)

	markers, err := svc.Nearby(context.Background(), "subject", now)
	require.NoError(t, err)

	require.Len(t, markers, 1)
	m := markers[0]
	assert.Equal(t, "bob", m.ID)
	assert.Equal(t, 26, m.Age)
	assert.Equal(t, 37.0005, m.PublishedLat)
	assert.True(t, m.IsVerified)
	assert.True(t, m.HideDistance)
}
