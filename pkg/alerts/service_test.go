package alerts

import (
	"context"
	"encoding/json"
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

type fakeEventStore struct {
	latest       *models.CrossedAlertEvent
	recentPairs  map[string]bool
	created      []*models.CrossedAlertEvent
	guardBlocked bool
}

func (f *fakeEventStore) CreateIfSubjectIdle(ctx context.Context, event *models.CrossedAlertEvent, since time.Time) (bool, error) {
	if f.guardBlocked {
		return false, nil
	}
	f.created = append(f.created, event)
	return true, nil
}

func (f *fakeEventStore) LatestForSubject(ctx context.Context, subjectUserID string) (*models.CrossedAlertEvent, error) {
	return f.latest, nil
}

func (f *fakeEventStore) ExistsRecentForPair(ctx context.Context, subjectUserID, candidateUserID string, since time.Time) (bool, error) {
	return f.recentPairs[candidateUserID], nil
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
}

func (f *fakeMatcher) FindNearbyPublished(ctx context.Context, subject *models.User, refLat, refLng float64, now time.Time) ([]models.User, error) {
	return f.candidates, nil
}

func publishedUser(id string, lat, lng float64, at time.Time) *models.User {
	return &models.User{
		ID:                 id,
		Name:               id,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
		PublishedLat:       &lat,
		PublishedLng:       &lng,
		PublishedAt:        &at,
	}
}

func TestDetectTriggers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	store := &fakeEventStore{}
	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now.Add(-time.Hour))}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	assert.Empty(t, result.Reason)

	require.Len(t, store.created, 1)
	assert.Equal(t, "alice", store.created[0].SubjectUserID)
	assert.Equal(t, "bob", store.created[0].CandidateUserID)
	assert.Equal(t, now.Add(7*24*time.Hour), store.created[0].ExpiresAt)
}

func TestDetectSubjectCooldown(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	store := &fakeEventStore{
		latest: &models.CrossedAlertEvent{SubjectUserID: "alice", CreatedAt: now.Add(-2 * time.Hour)},
	}
	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.AlertReasonCooldown, result.Reason)
	assert.Empty(t, store.created)
}

func TestDetectCooldownElapsed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	store := &fakeEventStore{
		latest: &models.CrossedAlertEvent{SubjectUserID: "alice", CreatedAt: now.Add(-7 * time.Hour)},
	}
	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
}

func TestDetectUnverifiedSubject(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := &models.User{ID: "alice", VerificationStatus: models.VerificationPending, IsActive: true}

	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), &fakeEventStore{}, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.AlertReasonNone, result.Reason)
}

func TestDetectNoCandidates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	svc := NewService(testLogger(), &fakeEventStore{}, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, &fakeMatcher{}, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.AlertReasonNone, result.Reason)
}

func TestDetectPairDedupe(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	store := &fakeEventStore{recentPairs: map[string]bool{"bob": true}}
	matcher := &fakeMatcher{candidates: []models.User{
		*publishedUser("carol", 37.0005, -122.0, now),
		*publishedUser("bob", 37.0004, -122.0, now),
	}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.True(t, result.Triggered)

	// bob sorts first but was already alerted on, so carol is picked
	require.Len(t, store.created, 1)
	assert.Equal(t, "carol", store.created[0].CandidateUserID)
}

func TestDetectAllCandidatesDeduped(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	store := &fakeEventStore{recentPairs: map[string]bool{"bob": true, "carol": true}}
	matcher := &fakeMatcher{candidates: []models.User{
		*publishedUser("bob", 37.0005, -122.0, now),
		*publishedUser("carol", 37.0004, -122.0, now),
	}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.AlertReasonNone, result.Reason)
}

func TestDetectDeterministicPick(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	// Candidate order from the matcher must not influence the pick
	store := &fakeEventStore{}
	matcher := &fakeMatcher{candidates: []models.User{
		*publishedUser("zoe", 37.0005, -122.0, now),
		*publishedUser("bob", 37.0004, -122.0, now),
		*publishedUser("carol", 37.0003, -122.0, now),
	}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.True(t, result.Triggered)

	require.Len(t, store.created, 1)
	assert.Equal(t, "bob", store.created[0].CandidateUserID)
}

func TestDetectResponseIsAnonymous(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), &fakeEventStore{}, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	// The wire shape carries no identifier, coordinate, or timestamp
	assert.NotContains(t, string(data), "bob")
	for key := range fields {
		assert.Contains(t, []string{"triggered", "reason"}, key)
	}
}

func TestDetectSubjectNotFound(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	store := &fakeEventStore{}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{}}, &fakeMatcher{}, DefaultConfig())

	result, err := svc.Detect(context.Background(), "ghost", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.ReasonUserNotFound, result.Reason)
	assert.Empty(t, store.created)
}

func TestDetectGuardedInsertLosesRace(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	subject := publishedUser("alice", 37.0, -122.0, now.Add(-time.Hour))

	// The latest-event read sees an idle subject, but the guarded insert
	// reports that another event landed first inside the window.
	store := &fakeEventStore{guardBlocked: true}
	matcher := &fakeMatcher{candidates: []models.User{*publishedUser("bob", 37.0005, -122.0, now)}}
	svc := NewService(testLogger(), store, &fakeUserSource{users: map[string]*models.User{"alice": subject}}, matcher, DefaultConfig())

	result, err := svc.Detect(context.Background(), "alice", 37.0, -122.0, now)
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.AlertReasonCooldown, result.Reason)
	assert.Empty(t, store.created)
}
