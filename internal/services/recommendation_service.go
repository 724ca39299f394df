package services

import (
	"context"
	"errors"
	"time"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// Recommendation kinds used in logs and metrics
const (
	KindCrop       = "crop"
	KindFertilizer = "fertilizer"
	KindDisease    = "disease"
)

// Recommendation outcomes used in metrics
const (
	OutcomeSuccess      = "success"
	OutcomeUnknownLabel = "unknown_label"
	OutcomeError        = "error"
)

// RecommendationService runs the advisors and keeps a history of what
// was recommended to whom
type RecommendationService struct {
	repo       repository.FarmRepository
	fertilizer *advisor.FertilizerPredictor
	disease    *advisor.DiseaseClassifier
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	now        func() time.Time
}

// History is a user's recent recommendations
type History struct {
	Crops       []*models.CropRecommendationLog       `json:"crop_recommendations"`
	Fertilizers []*models.FertilizerRecommendationLog `json:"fertilizer_recommendations"`
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	repo repository.FarmRepository,
	fertilizer *advisor.FertilizerPredictor,
	disease *advisor.DiseaseClassifier,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RecommendationService {
	return &RecommendationService{
		repo:       repo,
		fertilizer: fertilizer,
		disease:    disease,
		logger:     logger,
		metrics:    metricsCollector,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecommendCrop runs the crop rule engine and logs the result. userID is
// nil for anonymous requests.
func (s *RecommendationService) RecommendCrop(ctx context.Context, userID *int64, sample models.SoilSample) string {
	crop := advisor.RecommendCrop(sample)
	s.metrics.RecordRecommendation(KindCrop, OutcomeSuccess)

	rec := models.NewCropRecommendationLog(userID, sample, crop, s.now())
	if err := s.repo.CreateCropRecommendation(ctx, rec); err != nil {
		s.historyWriteFailed(ctx, KindCrop, err)
	}

	s.logger.Info(ctx, "[RECOMMEND_CROP] Crop recommended", logging.Fields{
		"crop":      crop,
		"ph":        sample.PH,
		"rainfall":  sample.Rainfall,
		"anonymous": userID == nil,
	})

	return crop
}

// RecommendFertilizer runs the fertilizer predictor and logs successful
// results. Unknown labels are returned unchanged to the caller.
func (s *RecommendationService) RecommendFertilizer(ctx context.Context, userID *int64, q models.FertilizerQuery) (string, error) {
	timer := s.metrics.NewTimer(s.metrics.InferenceDuration)
	fertilizer, err := s.fertilizer.PredictFertilizer(q)
	timer.ObserveDuration()

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, advisor.ErrUnknownLabel) {
			outcome = OutcomeUnknownLabel
		}
		s.metrics.RecordRecommendation(KindFertilizer, outcome)

		s.logger.Warn(ctx, "[RECOMMEND_FERTILIZER_FAILED] Fertilizer prediction failed", logging.Fields{
			"soil":    q.Soil,
			"crop":    q.Crop,
			"outcome": outcome,
			"error":   err.Error(),
		})
		return "", err
	}

	s.metrics.RecordRecommendation(KindFertilizer, OutcomeSuccess)

	rec := models.NewFertilizerRecommendationLog(userID, q, fertilizer, s.now())
	if err := s.repo.CreateFertilizerRecommendation(ctx, rec); err != nil {
		s.historyWriteFailed(ctx, KindFertilizer, err)
	}

	s.logger.Info(ctx, "[RECOMMEND_FERTILIZER] Fertilizer recommended", logging.Fields{
		"fertilizer": fertilizer,
		"soil":       q.Soil,
		"crop":       q.Crop,
	})

	return fertilizer, nil
}

// FertilizerOptions returns the crop and soil labels the predictor accepts
func (s *RecommendationService) FertilizerOptions() (crops, soils []string) {
	return s.fertilizer.ListCropAndSoilVocabulary()
}

// DetectDisease classifies an uploaded plant image
func (s *RecommendationService) DetectDisease(ctx context.Context, image []byte) models.DiseaseRecord {
	record := s.disease.ClassifyDisease(image)
	s.metrics.RecordRecommendation(KindDisease, OutcomeSuccess)

	s.logger.Info(ctx, "[DETECT_DISEASE] Disease detected", logging.Fields{
		"disease":     record.Name,
		"image_bytes": len(image),
	})

	return record
}

// History returns the user's most recent crop and fertilizer recommendations
func (s *RecommendationService) History(ctx context.Context, userID int64, limit int) (*History, error) {
	crops, err := s.repo.ListCropRecommendations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	fertilizers, err := s.repo.ListFertilizerRecommendations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return &History{Crops: crops, Fertilizers: fertilizers}, nil
}

// CropCounts aggregates crop recommendations served since the given time
func (s *RecommendationService) CropCounts(ctx context.Context, since time.Time) ([]*models.CropCount, error) {
	return s.repo.CropRecommendationCounts(ctx, since)
}

// historyWriteFailed records a lost history row. The recommendation itself
// has already been served.
func (s *RecommendationService) historyWriteFailed(ctx context.Context, kind string, err error) {
	s.metrics.RecordHistoryWriteError(kind)
	s.logger.Error(ctx, "[HISTORY_WRITE_ERROR] Failed to record recommendation", logging.Fields{
		"kind": kind,
	}, err)
}
