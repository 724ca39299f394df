package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// Batch sample results used in metrics
const (
	BatchRecommended = "recommended"
	BatchParseError  = "parse_error"
)

// sampleFields is the column order of a soil sample file
var sampleFields = []string{"nitrogen", "phosphorus", "potassium", "temperature", "humidity", "ph", "rainfall"}

// BatchService runs the crop rule engine over files of soil samples and
// stores every recommendation in the history
type BatchService struct {
	repo    repository.FarmRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// BatchResult contains batch run statistics
type BatchResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	CropCounts        map[string]int
	Duration          time.Duration
	Errors            []string
}

// FileBatchResult contains per-file statistics
type FileBatchResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	CropCounts        map[string]int
}

func (r *BatchResult) add(file *FileBatchResult) {
	if file == nil {
		return
	}
	r.TotalRecords += file.TotalRecords
	r.SuccessfulRecords += file.SuccessfulRecords
	r.FailedRecords += file.FailedRecords
	for crop, n := range file.CropCounts {
		r.CropCounts[crop] += n
	}
}

// NewBatchService creates a new batch service
func NewBatchService(repo repository.FarmRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *BatchService {
	return &BatchService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDirectory recommends crops for every *.csv and *.tsv file in dataDir.
// A failing file is recorded in Errors and its committed rows still count.
// On cancellation the totals so far are returned with the context error.
func (s *BatchService) ProcessDirectory(ctx context.Context, dataDir string, batchSize int) (*BatchResult, error) {
	startTime := time.Now()

	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	s.logger.Info(ctx, "[BATCH_START] Starting batch recommendation", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	var files []string
	for _, pattern := range []string{"*.csv", "*.tsv"} {
		matches, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no sample files found in %s", dataDir)
	}

	result := &BatchResult{
		TotalFiles: len(files),
		CropCounts: make(map[string]int),
		Errors:     make([]string, 0),
	}

	for _, filePath := range files {
		fileResult, err := s.ProcessFile(ctx, filePath, batchSize)
		result.add(fileResult)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to process %s: %v", filePath, err))
			s.logger.Error(ctx, "[BATCH_FILE_ERROR] File processing failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			if ctx.Err() != nil {
				result.Duration = time.Since(startTime)
				return result, ctx.Err()
			}
			continue
		}

		s.logger.Info(ctx, "[BATCH_FILE_SUCCESS] File processed", logging.Fields{
			"file_path":          filePath,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[BATCH_COMPLETE] Batch recommendation completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// ProcessFile recommends crops for one sample file
func (s *BatchService) ProcessFile(ctx context.Context, filePath string, batchSize int) (*FileBatchResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.Process(ctx, file, batchSize)
}

// Process reads soil samples line by line, one per line with seven comma
// or tab separated readings. A header line and blank lines are skipped;
// malformed lines are counted and skipped. On error the partial result is
// returned as well; its SuccessfulRecords counts the rows already committed.
func (s *BatchService) Process(ctx context.Context, r io.Reader, batchSize int) (*FileBatchResult, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	result := &FileBatchResult{CropCounts: make(map[string]int)}
	batch := make([]*models.CropRecommendationLog, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.CreateCropRecommendationsBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || (lineNo == 1 && isHeader(line)) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.TotalRecords++

		sample, err := ParseSampleLine(line)
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordBatchSample(BatchParseError)
			s.logger.Debug(ctx, "[BATCH_PARSE_ERROR] Skipping malformed sample", logging.Fields{
				"line":  lineNo,
				"error": err.Error(),
			})
			continue
		}

		crop := advisor.RecommendCrop(sample)
		result.CropCounts[crop]++
		s.metrics.RecordBatchSample(BatchRecommended)
		batch = append(batch, models.NewCropRecommendationLog(nil, sample, crop, s.now()))

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("error reading samples: %w", err)
	}

	if err := flush(); err != nil {
		return result, fmt.Errorf("failed to insert final batch: %w", err)
	}

	return result, nil
}

// ParseSampleLine parses "N,P,K,temperature,humidity,ph,rainfall". Tabs
// are accepted in place of commas.
func ParseSampleLine(line string) (models.SoilSample, error) {
	parts := splitFields(line)
	if len(parts) != len(sampleFields) {
		return models.SoilSample{}, fmt.Errorf("invalid line format: expected %d fields, got %d", len(sampleFields), len(parts))
	}

	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.SoilSample{}, fmt.Errorf("invalid %s: %w", sampleFields[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.SoilSample{}, fmt.Errorf("invalid %s: must be a finite number", sampleFields[i])
		}
		values[i] = v
	}

	return models.SoilSample{
		Nitrogen:    values[0],
		Phosphorus:  values[1],
		Potassium:   values[2],
		Temperature: values[3],
		Humidity:    values[4],
		PH:          values[5],
		Rainfall:    values[6],
	}, nil
}

func splitFields(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return strings.Split(line, ",")
}

// isHeader treats a first line whose first column is not a number as a header
func isHeader(line string) bool {
	first := strings.Trim(strings.TrimSpace(splitFields(line)[0]), `"`)
	_, err := strconv.ParseFloat(first, 64)
	return err != nil
}
