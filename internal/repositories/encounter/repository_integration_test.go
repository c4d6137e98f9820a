package encounter_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/internal/repositories/encounter"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "clover"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func createTestUser(t *testing.T, db database.DB) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO users (id, name, verification_status) VALUES ($1, $2, 'verified')", id, "user-"+id[:8])
	require.NoError(t, err)
	return id
}

func pairEntry(userA, userB string, createdAt time.Time) *models.EncounterHistoryEntry {
	a, b := models.CanonicalPair(userA, userB)
	return &models.EncounterHistoryEntry{
		UserAID:   a,
		UserBID:   b,
		AreaName:  "Test Area",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(30 * 24 * time.Hour),
	}
}

func TestRecordEncounterDedupeWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := encounter.NewRepository(db, getTestLogger())
	ctx := context.Background()

	userA := createTestUser(t, db)
	userB := createTestUser(t, db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	inserted, err := repo.RecordEncounter(ctx, pairEntry(userA, userB, now), now.Add(-24*time.Hour), 15)
	require.NoError(t, err)
	require.True(t, inserted)

	// A repeat inside the dedupe window must not add a second entry
	later := now.Add(time.Hour)
	inserted, err = repo.RecordEncounter(ctx, pairEntry(userA, userB, later), later.Add(-24*time.Hour), 15)
	require.NoError(t, err)
	assert.False(t, inserted)

	entries, err := repo.ListForUser(ctx, userA, now, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].CreatedAt.Equal(now))
}

func TestRecordEncounterTrimsBothSides(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := encounter.NewRepository(db, getTestLogger())
	ctx := context.Background()

	subject := createTestUser(t, db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	// 20 encounters with distinct partners, oldest first
	partners := make([]string, 20)
	for i := range partners {
		partners[i] = createTestUser(t, db)
		createdAt := now.Add(time.Duration(i) * time.Minute)
		inserted, err := repo.RecordEncounter(ctx, pairEntry(subject, partners[i], createdAt), createdAt.Add(-24*time.Hour), 15)
		require.NoError(t, err, fmt.Sprintf("failed to record encounter %d", i))
		require.True(t, inserted)
	}

	// Only the 15 newest survive for the subject, newest first
	entries, err := repo.ListForUser(ctx, subject, now, 0)
	require.NoError(t, err)
	require.Len(t, entries, 15)
	assert.True(t, entries[0].CreatedAt.Equal(now.Add(19*time.Minute)))
	assert.True(t, entries[14].CreatedAt.Equal(now.Add(5*time.Minute)))

	// The cap counts the subject on either side of the pair, so the trimmed
	// entries are gone for the early partners too
	earlyEntries, err := repo.ListForUser(ctx, partners[0], now, 0)
	require.NoError(t, err)
	assert.Empty(t, earlyEntries)

	lateEntries, err := repo.ListForUser(ctx, partners[19], now, 0)
	require.NoError(t, err)
	assert.Len(t, lateEntries, 1)
}

func TestListForUserExcludesExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := encounter.NewRepository(db, getTestLogger())
	ctx := context.Background()

	userA := createTestUser(t, db)
	userB := createTestUser(t, db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry := pairEntry(userA, userB, now.Add(-48*time.Hour))
	entry.ExpiresAt = now.Add(-time.Hour)
	inserted, err := repo.RecordEncounter(ctx, entry, now.Add(-72*time.Hour), 15)
	require.NoError(t, err)
	require.True(t, inserted)

	// Expired entries are filtered on read even before the janitor removes them
	entries, err := repo.ListForUser(ctx, userA, now, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	deleted, err := repo.DeleteExpired(ctx, now, 1000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	entries, err = repo.ListForUser(ctx, userA, now, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
