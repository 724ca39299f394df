package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"farm-advisor/internal/models"
	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// ImageField is the multipart field carrying the plant photo
const ImageField = "plant_image"

// History and stats limits
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultStatsDays    = 30
	maxStatsDays        = 365
)

// AdvisoryHandler handles the recommendation endpoints
type AdvisoryHandler struct {
	responder
	recommendations *services.RecommendationService
	maxImageBytes   int64
}

// NewAdvisoryHandler creates a new advisory handler
func NewAdvisoryHandler(
	recommendations *services.RecommendationService,
	maxImageBytes int64,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AdvisoryHandler {
	return &AdvisoryHandler{
		responder:       responder{logger: logger, metrics: metricsCollector},
		recommendations: recommendations,
		maxImageBytes:   maxImageBytes,
	}
}

// CropResponse is the result of a crop recommendation
type CropResponse struct {
	RecommendedCrop string            `json:"recommended_crop"`
	Input           models.SoilSample `json:"input"`
}

// FertilizerResponse is the result of a fertilizer recommendation
type FertilizerResponse struct {
	RecommendedFertilizer string                 `json:"recommended_fertilizer"`
	Input                 models.FertilizerQuery `json:"input"`
}

// FertilizerOptionsResponse lists the labels the fertilizer model knows
type FertilizerOptionsResponse struct {
	Crops []string `json:"crops"`
	Soils []string `json:"soils"`
}

// DiseaseResponse is the result of a disease detection
type DiseaseResponse struct {
	models.DiseaseRecord
	ImageType string `json:"image_type"`
}

// RecommendCrop handles POST /api/crop-recommendation
func (h *AdvisoryHandler) RecommendCrop(w http.ResponseWriter, r *http.Request) {
	var s models.SoilSample
	err := formFloats(r,
		floatField{"nitrogen", &s.Nitrogen},
		floatField{"phosphorus", &s.Phosphorus},
		floatField{"potassium", &s.Potassium},
		floatField{"temperature", &s.Temperature},
		floatField{"humidity", &s.Humidity},
		floatField{"ph", &s.PH},
		floatField{"rainfall", &s.Rainfall},
	)
	if err == nil {
		err = s.Validate()
	}
	if err != nil {
		h.sendServiceError(w, r, "[API_CROP_ERROR]", err)
		return
	}

	crop := h.recommendations.RecommendCrop(r.Context(), currentUserID(r), s)
	h.sendJSON(w, CropResponse{RecommendedCrop: crop, Input: s}, http.StatusOK)
}

// FertilizerOptions handles GET /api/fertilizer-recommendation/options
func (h *AdvisoryHandler) FertilizerOptions(w http.ResponseWriter, r *http.Request) {
	crops, soils := h.recommendations.FertilizerOptions()
	h.sendJSON(w, FertilizerOptionsResponse{Crops: crops, Soils: soils}, http.StatusOK)
}

// RecommendFertilizer handles POST /api/fertilizer-recommendation
func (h *AdvisoryHandler) RecommendFertilizer(w http.ResponseWriter, r *http.Request) {
	var q models.FertilizerQuery
	err := formFloats(r,
		floatField{"temperature", &q.Temperature},
		floatField{"moisture", &q.Moisture},
		floatField{"rainfall", &q.Rainfall},
		floatField{"ph", &q.PH},
		floatField{"nitrogen", &q.Nitrogen},
		floatField{"phosphorus", &q.Phosphorus},
		floatField{"potassium", &q.Potassium},
		floatField{"carbon", &q.Carbon},
	)
	if err == nil {
		q.Soil, err = formString(r, "soil")
	}
	if err == nil {
		q.Crop, err = formString(r, "crop")
	}
	if err == nil {
		err = q.Validate()
	}
	if err != nil {
		h.sendServiceError(w, r, "[API_FERTILIZER_ERROR]", err)
		return
	}

	fertilizer, err := h.recommendations.RecommendFertilizer(r.Context(), currentUserID(r), q)
	if err != nil {
		h.sendServiceError(w, r, "[API_FERTILIZER_ERROR]", err)
		return
	}

	h.sendJSON(w, FertilizerResponse{RecommendedFertilizer: fertilizer, Input: q}, http.StatusOK)
}

// DetectDisease handles POST /api/disease-detection. Any file within the
// configured size limit is accepted; only a missing file is rejected.
func (h *AdvisoryHandler) DetectDisease(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+64<<10)

	file, _, err := r.FormFile(ImageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			h.sendError(w, r, "image exceeds the upload size limit", http.StatusRequestEntityTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			h.sendError(w, r, ImageField+" is required", http.StatusBadRequest)
		default:
			h.sendError(w, r, "invalid multipart upload", http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		h.sendError(w, r, "failed to read upload", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxImageBytes {
		h.sendError(w, r, "image exceeds the upload size limit", http.StatusRequestEntityTooLarge)
		return
	}

	// The classifier accepts any payload; content that does not look like
	// an image is only logged.
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		h.logger.Warn(r.Context(), "[API_DISEASE_UPLOAD] Upload does not look like an image", logging.Fields{
			"detected_type": mtype.String(),
			"size_bytes":    len(data),
		})
	}

	record := h.recommendations.DetectDisease(r.Context(), data)
	h.sendJSON(w, DiseaseResponse{DiseaseRecord: record, ImageType: mtype.String()}, http.StatusOK)
}

// History handles GET /api/recommendations/history
func (h *AdvisoryHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		h.sendServiceError(w, r, "[API_HISTORY_ERROR]", err)
		return
	}
	if limit < 1 {
		h.sendError(w, r, "limit must be positive", http.StatusBadRequest)
		return
	}
	limit = min(limit, maxHistoryLimit)

	history, err := h.recommendations.History(r.Context(), user.ID, limit)
	if err != nil {
		h.sendServiceError(w, r, "[API_HISTORY_ERROR]", err)
		return
	}

	h.sendJSON(w, history, http.StatusOK)
}

// CropStats handles GET /api/recommendations/stats
func (h *AdvisoryHandler) CropStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultStatsDays)
	if err != nil || days < 1 || days > maxStatsDays {
		h.sendError(w, r, "days must be between 1 and 365", http.StatusBadRequest)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	counts, err := h.recommendations.CropCounts(r.Context(), since)
	if err != nil {
		h.sendServiceError(w, r, "[API_STATS_ERROR]", err)
		return
	}

	h.sendJSON(w, map[string]interface{}{
		"since":  since.Format(time.RFC3339),
		"counts": counts,
	}, http.StatusOK)
}

// RegisterRoutes registers the recommendation routes
func (h *AdvisoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/crop-recommendation", h.RecommendCrop).Methods("POST")
	router.HandleFunc("/api/fertilizer-recommendation/options", h.FertilizerOptions).Methods("GET")
	router.HandleFunc("/api/fertilizer-recommendation", h.RecommendFertilizer).Methods("POST")
	router.HandleFunc("/api/disease-detection", h.DetectDisease).Methods("POST")
	router.HandleFunc("/api/recommendations/history", h.History).Methods("GET")
	router.HandleFunc("/api/recommendations/stats", h.CropStats).Methods("GET")
}
