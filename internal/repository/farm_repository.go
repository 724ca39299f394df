package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"farm-advisor/internal/models"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// FarmRepository provides data access for accounts, farm records and
// recommendation history
type FarmRepository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// Session operations
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Diary operations
	CreateDiaryEntry(ctx context.Context, entry *models.DiaryEntry) error
	ListDiaryEntries(ctx context.Context, userID int64, limit, offset int) ([]*models.DiaryEntry, error)
	DeleteDiaryEntry(ctx context.Context, userID, id int64) error

	// Task operations
	CreateTask(ctx context.Context, task *models.Task) error
	ListTasks(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error)
	CompleteTask(ctx context.Context, userID, id int64) error
	DeleteTask(ctx context.Context, userID, id int64) error

	// Recommendation log operations
	CreateCropRecommendation(ctx context.Context, rec *models.CropRecommendationLog) error
	CreateCropRecommendationsBatch(ctx context.Context, recs []*models.CropRecommendationLog) error
	CreateFertilizerRecommendation(ctx context.Context, rec *models.FertilizerRecommendationLog) error
	ListCropRecommendations(ctx context.Context, userID int64, limit int) ([]*models.CropRecommendationLog, error)
	ListFertilizerRecommendations(ctx context.Context, userID int64, limit int) ([]*models.FertilizerRecommendationLog, error)
	CropRecommendationCounts(ctx context.Context, since time.Time) ([]*models.CropCount, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// farmRepository implements FarmRepository
type farmRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFarmRepository creates a new farm repository
func NewFarmRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) FarmRepository {
	return &farmRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateUser inserts a user; a taken username or email yields *ConflictError
func (r *farmRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.db.InsertReturningID(ctx, "insert_user", query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "email") {
				return &ConflictError{Resource: "user", Field: "email", Value: user.Email}
			}
			return &ConflictError{Resource: "user", Field: "username", Value: user.Username}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id

	r.logger.Debug(ctx, "[REPO_CREATE_USER] User created", logging.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	})

	return nil
}

// GetUserByUsername retrieves a user by login name
func (r *farmRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ?
	`

	var user models.User
	err := r.db.GetContext(ctx, "get_user_by_username", &user, query, username)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "user", ID: username}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByID retrieves a user by ID
func (r *farmRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`

	var user models.User
	err := r.db.GetContext(ctx, "get_user_by_id", &user, query, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "user", ID: strconv.FormatInt(id, 10)}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CreateSession stores an issued session token
func (r *farmRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, "insert_session", query,
		session.Token,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by token. Expiry is left to the caller.
func (r *farmRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT token, user_id, created_at, expires_at
		FROM sessions
		WHERE token = ?
	`

	var session models.Session
	err := r.db.GetContext(ctx, "get_session", &session, query, token)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "session", ID: "redacted"}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (r *farmRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, "delete_session", `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions that expired at or before now
func (r *farmRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "delete_expired_sessions", `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}

	return n, nil
}

// CreateDiaryEntry inserts a diary entry
func (r *farmRepository) CreateDiaryEntry(ctx context.Context, entry *models.DiaryEntry) error {
	query := `
		INSERT INTO farm_diary (user_id, entry_type, entry_date, crop, details, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.db.InsertReturningID(ctx, "insert_diary_entry", query,
		entry.UserID,
		entry.EntryType,
		entry.Date,
		entry.Crop,
		entry.Details,
		entry.Amount,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diary entry: %w", err)
	}
	entry.ID = id

	return nil
}

// ListDiaryEntries returns a user's diary, newest entry date first
func (r *farmRepository) ListDiaryEntries(ctx context.Context, userID int64, limit, offset int) ([]*models.DiaryEntry, error) {
	query := `
		SELECT id, user_id, entry_type, entry_date, crop, details, amount, created_at
		FROM farm_diary
		WHERE user_id = ?
		ORDER BY entry_date DESC, id DESC
		LIMIT ? OFFSET ?
	`

	entries := []*models.DiaryEntry{}
	err := r.db.SelectContext(ctx, "list_diary_entries", &entries, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list diary entries: %w", err)
	}

	return entries, nil
}

// DeleteDiaryEntry removes one of the user's diary entries
func (r *farmRepository) DeleteDiaryEntry(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, "delete_diary_entry",
		`DELETE FROM farm_diary WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete diary entry: %w", err)
	}

	return expectOneRow(result, "diary_entry", id)
}

// CreateTask inserts a task
func (r *farmRepository) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (user_id, task_name, task_date, task_type, task_details, is_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.db.InsertReturningID(ctx, "insert_task", query,
		task.UserID,
		task.TaskName,
		task.TaskDate,
		task.TaskType,
		task.TaskDetails,
		task.IsCompleted,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	task.ID = id

	return nil
}

// ListTasks returns a user's tasks, open tasks first, then by date
func (r *farmRepository) ListTasks(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error) {
	query := `
		SELECT id, user_id, task_name, task_date, task_type, task_details, is_completed, created_at
		FROM tasks
		WHERE user_id = ?
		ORDER BY is_completed, task_date, id
		LIMIT ? OFFSET ?
	`

	tasks := []*models.Task{}
	err := r.db.SelectContext(ctx, "list_tasks", &tasks, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// CompleteTask marks one of the user's tasks as done. Completing a task
// twice is allowed.
func (r *farmRepository) CompleteTask(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, "complete_task",
		`UPDATE tasks SET is_completed = ? WHERE id = ? AND user_id = ?`, true, id, userID)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	return expectOneRow(result, "task", id)
}

// DeleteTask removes one of the user's tasks
func (r *farmRepository) DeleteTask(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, "delete_task",
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return expectOneRow(result, "task", id)
}

const insertCropRecommendation = `
	INSERT INTO crop_recommendations (
		user_id, nitrogen, phosphorus, potassium,
		temperature, humidity, ph, rainfall,
		recommended_crop, created_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func cropRecommendationArgs(rec *models.CropRecommendationLog) []interface{} {
	return []interface{}{
		rec.UserID,
		rec.Nitrogen,
		rec.Phosphorus,
		rec.Potassium,
		rec.Temperature,
		rec.Humidity,
		rec.PH,
		rec.Rainfall,
		rec.RecommendedCrop,
		rec.CreatedAt,
	}
}

// CreateCropRecommendation logs a served crop recommendation
func (r *farmRepository) CreateCropRecommendation(ctx context.Context, rec *models.CropRecommendationLog) error {
	id, err := r.db.InsertReturningID(ctx, "insert_crop_recommendation",
		insertCropRecommendation+" RETURNING id", cropRecommendationArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to create crop recommendation: %w", err)
	}
	rec.ID = id

	return nil
}

// CreateCropRecommendationsBatch logs many crop recommendations in a single transaction
func (r *farmRepository) CreateCropRecommendationsBatch(ctx context.Context, recs []*models.CropRecommendationLog) error {
	if len(recs) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(recs),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	// Begin transaction
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Prepare statement
	stmt, err := tx.PrepareContext(ctx, tx.Rebind(insertCropRecommendation))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	// Execute batch
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, cropRecommendationArgs(rec)...); err != nil {
			return fmt.Errorf("failed to insert crop recommendation: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CreateFertilizerRecommendation logs a served fertilizer recommendation
func (r *farmRepository) CreateFertilizerRecommendation(ctx context.Context, rec *models.FertilizerRecommendationLog) error {
	query := `
		INSERT INTO fertilizer_recommendations (
			user_id, nitrogen, phosphorus, potassium,
			crop_type, soil_type, recommended_fertilizer, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	id, err := r.db.InsertReturningID(ctx, "insert_fertilizer_recommendation", query,
		rec.UserID,
		rec.Nitrogen,
		rec.Phosphorus,
		rec.Potassium,
		rec.CropType,
		rec.SoilType,
		rec.RecommendedFertilizer,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fertilizer recommendation: %w", err)
	}
	rec.ID = id

	return nil
}

// ListCropRecommendations returns a user's most recent crop recommendations
func (r *farmRepository) ListCropRecommendations(ctx context.Context, userID int64, limit int) ([]*models.CropRecommendationLog, error) {
	query := `
		SELECT id, user_id, nitrogen, phosphorus, potassium,
		       temperature, humidity, ph, rainfall,
		       recommended_crop, created_at
		FROM crop_recommendations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	recs := []*models.CropRecommendationLog{}
	err := r.db.SelectContext(ctx, "list_crop_recommendations", &recs, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crop recommendations: %w", err)
	}

	return recs, nil
}

// ListFertilizerRecommendations returns a user's most recent fertilizer recommendations
func (r *farmRepository) ListFertilizerRecommendations(ctx context.Context, userID int64, limit int) ([]*models.FertilizerRecommendationLog, error) {
	query := `
		SELECT id, user_id, nitrogen, phosphorus, potassium,
		       crop_type, soil_type, recommended_fertilizer, created_at
		FROM fertilizer_recommendations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	recs := []*models.FertilizerRecommendationLog{}
	err := r.db.SelectContext(ctx, "list_fertilizer_recommendations", &recs, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fertilizer recommendations: %w", err)
	}

	return recs, nil
}

// CropRecommendationCounts aggregates recommendations served since a point in time
func (r *farmRepository) CropRecommendationCounts(ctx context.Context, since time.Time) ([]*models.CropCount, error) {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_CROP_COUNTS] Crop counts calculated", logging.Fields{
			"since":       since.Format(time.RFC3339),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	query := `
		SELECT recommended_crop AS crop, COUNT(*) AS count
		FROM crop_recommendations
		WHERE created_at >= ?
		GROUP BY recommended_crop
		ORDER BY count DESC, crop
	`

	counts := []*models.CropCount{}
	err := r.db.SelectContext(ctx, "crop_recommendation_counts", &counts, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count crop recommendations: %w", err)
	}

	return counts, nil
}

// HealthCheck performs a repository health check
func (r *farmRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func expectOneRow(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &NotFoundError{Resource: resource, ID: strconv.FormatInt(id, 10)}
	}
	return nil
}
