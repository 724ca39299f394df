package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-advisor/internal/models"
	"farm-advisor/migrations"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

func newTestRepository(t *testing.T) FarmRepository {
	t.Helper()

	cfg := &database.Config{
		Driver:         database.DriverSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "farm.db"),
		MaxIdleConns:   1,
		ConnectRetries: 1,
	}

	collector := metrics.NewCollector("repotest", prometheus.NewRegistry())
	db, err := database.Open(cfg, logging.NewNop(), collector)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrations.Apply(context.Background(), db.DB(), database.DriverSQLite, migrations.Up)
	require.NoError(t, err)

	return NewFarmRepository(db, logging.NewNop(), collector)
}

func createUser(t *testing.T, repo FarmRepository, name string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	require.NotZero(t, user.ID)
	return user
}

func TestUsers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	alice := createUser(t, repo, "alice")

	got, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	byID, err := repo.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))

	_, err = repo.GetUserByID(ctx, 9999)
	assert.True(t, errors.As(err, &notFound))
}

func TestCreateUser_Conflicts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createUser(t, repo, "alice")

	err := repo.CreateUser(ctx, &models.User{
		Username: "alice", Email: "other@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC(),
	})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, "username", conflict.Field)

	err = repo.CreateUser(ctx, &models.User{
		Username: "alice2", Email: "alice@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC(),
	})
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, "email", conflict.Field)
}

func TestSessions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	user := createUser(t, repo, "bob")

	now := time.Now().UTC()
	live := &models.Session{Token: "live-token", UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := &models.Session{Token: "stale-token", UserID: user.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.CreateSession(ctx, live))
	require.NoError(t, repo.CreateSession(ctx, stale))

	got, err := repo.GetSession(ctx, "live-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Millisecond)

	purged, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, repo.DeleteSession(ctx, "live-token"))
	require.NoError(t, repo.DeleteSession(ctx, "live-token"))

	_, err = repo.GetSession(ctx, "live-token")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestDiaryEntries_ScopedToOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createUser(t, repo, "carol")
	other := createUser(t, repo, "dave")

	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	first := &models.DiaryEntry{UserID: owner.ID, EntryType: models.EntryExpense, Date: day(1), Crop: "Wheat", Details: "seed", Amount: 120.5, CreatedAt: time.Now().UTC()}
	second := &models.DiaryEntry{UserID: owner.ID, EntryType: models.EntryHarvest, Date: day(20), Crop: "Wheat", Details: "cut", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateDiaryEntry(ctx, first))
	require.NoError(t, repo.CreateDiaryEntry(ctx, second))

	entries, err := repo.ListDiaryEntries(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID, "newest date first")
	assert.Equal(t, models.EntryExpense, entries[1].EntryType)
	assert.Equal(t, 120.5, entries[1].Amount)

	others, err := repo.ListDiaryEntries(ctx, other.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, others)

	var notFound *NotFoundError
	err = repo.DeleteDiaryEntry(ctx, other.ID, first.ID)
	assert.True(t, errors.As(err, &notFound), "other users cannot delete")

	require.NoError(t, repo.DeleteDiaryEntry(ctx, owner.ID, first.ID))
	entries, err = repo.ListDiaryEntries(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTasks_Lifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createUser(t, repo, "erin")
	other := createUser(t, repo, "frank")

	early := &models.Task{UserID: owner.ID, TaskName: "Irrigate", TaskDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), TaskType: "irrigation", CreatedAt: time.Now().UTC()}
	late := &models.Task{UserID: owner.ID, TaskName: "Spray", TaskDate: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), TaskType: "protection", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateTask(ctx, early))
	require.NoError(t, repo.CreateTask(ctx, late))

	var notFound *NotFoundError
	assert.True(t, errors.As(repo.CompleteTask(ctx, other.ID, early.ID), &notFound))

	require.NoError(t, repo.CompleteTask(ctx, owner.ID, early.ID))
	require.NoError(t, repo.CompleteTask(ctx, owner.ID, early.ID))

	tasks, err := repo.ListTasks(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, late.ID, tasks[0].ID, "open tasks first")
	assert.False(t, tasks[0].IsCompleted)
	assert.True(t, tasks[1].IsCompleted)

	assert.True(t, errors.As(repo.DeleteTask(ctx, owner.ID, 9999), &notFound))
	require.NoError(t, repo.DeleteTask(ctx, owner.ID, late.ID))
}

func TestRecommendationLogs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	user := createUser(t, repo, "grace")
	uid := user.ID
	now := time.Now().UTC()

	crop := models.NewCropRecommendationLog(&uid, models.SoilSample{Nitrogen: 90, PH: 6.5}, "Wheat", now)
	require.NoError(t, repo.CreateCropRecommendation(ctx, crop))
	assert.NotZero(t, crop.ID)

	// Anonymous requests are logged without a user
	anon := models.NewCropRecommendationLog(nil, models.SoilSample{PH: 5.5}, "Millet", now)
	require.NoError(t, repo.CreateCropRecommendation(ctx, anon))

	fert := models.NewFertilizerRecommendationLog(&uid, models.FertilizerQuery{Nitrogen: 20, Soil: "Loamy Soil", Crop: "Wheat"}, "Urea", now)
	require.NoError(t, repo.CreateFertilizerRecommendation(ctx, fert))

	crops, err := repo.ListCropRecommendations(ctx, uid, 10)
	require.NoError(t, err)
	require.Len(t, crops, 1)
	assert.Equal(t, "Wheat", crops[0].RecommendedCrop)
	require.NotNil(t, crops[0].UserID)
	assert.Equal(t, uid, *crops[0].UserID)

	ferts, err := repo.ListFertilizerRecommendations(ctx, uid, 10)
	require.NoError(t, err)
	require.Len(t, ferts, 1)
	assert.Equal(t, "Loamy Soil", ferts[0].SoilType)
	assert.Equal(t, "Urea", ferts[0].RecommendedFertilizer)
}

func TestCreateCropRecommendationsBatch_AndCounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateCropRecommendationsBatch(ctx, nil))

	batch := []*models.CropRecommendationLog{
		models.NewCropRecommendationLog(nil, models.SoilSample{}, "Millet", now),
		models.NewCropRecommendationLog(nil, models.SoilSample{}, "Millet", now),
		models.NewCropRecommendationLog(nil, models.SoilSample{}, "Rice", now),
	}
	require.NoError(t, repo.CreateCropRecommendationsBatch(ctx, batch))

	counts, err := repo.CropRecommendationCounts(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.CropCount{Crop: "Millet", Count: 2}, *counts[0])
	assert.Equal(t, models.CropCount{Crop: "Rice", Count: 1}, *counts[1])

	later, err := repo.CropRecommendationCounts(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestHealthCheck(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.HealthCheck(context.Background()))
}
