package models

import (
	"strings"
	"time"
)

// User is a registered account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session is an issued login token
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// EntryType classifies farm diary entries
type EntryType string

const (
	EntryExpense  EntryType = "expense"
	EntryIncome   EntryType = "income"
	EntryActivity EntryType = "activity"
	EntryHarvest  EntryType = "harvest"
	EntryNote     EntryType = "note"
)

// ParseEntryType normalizes and checks a diary entry type
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case EntryExpense, EntryIncome, EntryActivity, EntryHarvest, EntryNote:
		return t, nil
	}
	return "", &ValidationError{
		Field:   "entry_type",
		Value:   s,
		Message: "entry_type must be one of expense, income, activity, harvest, note",
	}
}

// DiaryEntry is one line of a user's farm diary
type DiaryEntry struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	EntryType EntryType `json:"entry_type" db:"entry_type"`
	Date      time.Time `json:"date" db:"entry_date"`
	Crop      string    `json:"crop" db:"crop"`
	Details   string    `json:"details" db:"details"`
	Amount    float64   `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task is a planned farm task
type Task struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	TaskName    string    `json:"task_name" db:"task_name"`
	TaskDate    time.Time `json:"task_date" db:"task_date"`
	TaskType    string    `json:"task_type" db:"task_type"`
	TaskDetails string    `json:"task_details" db:"task_details"`
	IsCompleted bool      `json:"is_completed" db:"is_completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CropRecommendationLog records a crop recommendation that was served
type CropRecommendationLog struct {
	ID              int64     `json:"id" db:"id"`
	UserID          *int64    `json:"user_id,omitempty" db:"user_id"`
	Nitrogen        float64   `json:"nitrogen" db:"nitrogen"`
	Phosphorus      float64   `json:"phosphorus" db:"phosphorus"`
	Potassium       float64   `json:"potassium" db:"potassium"`
	Temperature     float64   `json:"temperature" db:"temperature"`
	Humidity        float64   `json:"humidity" db:"humidity"`
	PH              float64   `json:"ph" db:"ph"`
	Rainfall        float64   `json:"rainfall" db:"rainfall"`
	RecommendedCrop string    `json:"recommended_crop" db:"recommended_crop"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NewCropRecommendationLog builds a log row from a sample and its result
func NewCropRecommendationLog(userID *int64, s SoilSample, crop string, at time.Time) *CropRecommendationLog {
	return &CropRecommendationLog{
		UserID:          userID,
		Nitrogen:        s.Nitrogen,
		Phosphorus:      s.Phosphorus,
		Potassium:       s.Potassium,
		Temperature:     s.Temperature,
		Humidity:        s.Humidity,
		PH:              s.PH,
		Rainfall:        s.Rainfall,
		RecommendedCrop: crop,
		CreatedAt:       at,
	}
}

// FertilizerRecommendationLog records a fertilizer recommendation that was served
type FertilizerRecommendationLog struct {
	ID                    int64     `json:"id" db:"id"`
	UserID                *int64    `json:"user_id,omitempty" db:"user_id"`
	Nitrogen              float64   `json:"nitrogen" db:"nitrogen"`
	Phosphorus            float64   `json:"phosphorus" db:"phosphorus"`
	Potassium             float64   `json:"potassium" db:"potassium"`
	CropType              string    `json:"crop_type" db:"crop_type"`
	SoilType              string    `json:"soil_type" db:"soil_type"`
	RecommendedFertilizer string    `json:"recommended_fertilizer" db:"recommended_fertilizer"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// NewFertilizerRecommendationLog builds a log row from a query and its result
func NewFertilizerRecommendationLog(userID *int64, q FertilizerQuery, fertilizer string, at time.Time) *FertilizerRecommendationLog {
	return &FertilizerRecommendationLog{
		UserID:                userID,
		Nitrogen:              q.Nitrogen,
		Phosphorus:            q.Phosphorus,
		Potassium:             q.Potassium,
		CropType:              q.Crop,
		SoilType:              q.Soil,
		RecommendedFertilizer: fertilizer,
		CreatedAt:             at,
	}
}

// CropCount aggregates how often a crop was recommended
type CropCount struct {
	Crop  string `json:"crop" db:"crop"`
	Count int    `json:"count" db:"count"`
}
