package services

import (
	"context"
	"math"
	"strings"
	"time"

	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// DateLayout is the calendar date format accepted for diary and task dates
const DateLayout = "2006-01-02"

// Page size limits for list operations
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// DiaryInput is a new diary entry as submitted by a user
type DiaryInput struct {
	EntryType string
	Date      string
	Crop      string
	Details   string
	Amount    float64
}

// TaskInput is a new task as submitted by a user
type TaskInput struct {
	TaskName    string
	TaskDate    string
	TaskType    string
	TaskDetails string
}

// FarmService manages a user's farm diary and task planner. Every
// operation is scoped to the owning user.
type FarmService struct {
	repo    repository.FarmRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewFarmService creates a new farm service
func NewFarmService(repo repository.FarmRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FarmService {
	return &FarmService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddDiaryEntry validates and stores a diary entry
func (s *FarmService) AddDiaryEntry(ctx context.Context, userID int64, in DiaryInput) (*models.DiaryEntry, error) {
	entryType, err := models.ParseEntryType(in.EntryType)
	if err != nil {
		return nil, err
	}

	date, err := parseDate("date", in.Date)
	if err != nil {
		return nil, err
	}

	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, &models.ValidationError{Field: "amount", Message: "amount must be a finite number"}
	}

	entry := &models.DiaryEntry{
		UserID:    userID,
		EntryType: entryType,
		Date:      date,
		Crop:      strings.TrimSpace(in.Crop),
		Details:   strings.TrimSpace(in.Details),
		Amount:    in.Amount,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateDiaryEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[DIARY_ADD] Diary entry added", logging.Fields{
		"entry_id":   entry.ID,
		"entry_type": entry.EntryType,
	})

	return entry, nil
}

// ListDiary returns a page of the user's diary
func (s *FarmService) ListDiary(ctx context.Context, userID int64, limit, offset int) ([]*models.DiaryEntry, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDiaryEntries(ctx, userID, limit, offset)
}

// DeleteDiaryEntry removes one of the user's diary entries
func (s *FarmService) DeleteDiaryEntry(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteDiaryEntry(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info(ctx, "[DIARY_DELETE] Diary entry deleted", logging.Fields{"entry_id": id})
	return nil
}

// AddTask validates and stores a task
func (s *FarmService) AddTask(ctx context.Context, userID int64, in TaskInput) (*models.Task, error) {
	name := strings.TrimSpace(in.TaskName)
	if name == "" {
		return nil, &models.ValidationError{Field: "task_name", Message: "task_name is required"}
	}

	date, err := parseDate("task_date", in.TaskDate)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		UserID:      userID,
		TaskName:    name,
		TaskDate:    date,
		TaskType:    strings.TrimSpace(in.TaskType),
		TaskDetails: strings.TrimSpace(in.TaskDetails),
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[TASK_ADD] Task added", logging.Fields{
		"task_id":   task.ID,
		"task_date": in.TaskDate,
	})

	return task, nil
}

// ListTasks returns a page of the user's tasks
func (s *FarmService) ListTasks(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListTasks(ctx, userID, limit, offset)
}

// CompleteTask marks one of the user's tasks as done
func (s *FarmService) CompleteTask(ctx context.Context, userID, id int64) error {
	if err := s.repo.CompleteTask(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info(ctx, "[TASK_COMPLETE] Task completed", logging.Fields{"task_id": id})
	return nil
}

// DeleteTask removes one of the user's tasks
func (s *FarmService) DeleteTask(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteTask(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info(ctx, "[TASK_DELETE] Task deleted", logging.Fields{"task_id": id})
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: field + " must be a date in YYYY-MM-DD format",
		}
	}
	return t, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
