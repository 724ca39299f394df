package modelstore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"farm-advisor/pkg/logging"
)

// Artifact file names inside the model directory
const (
	SoilEncoderFile       = "soil_encoder.json"
	CropEncoderFile       = "crop_encoder.json"
	FertilizerEncoderFile = "fertilizer_encoder.json"
	ModelFile             = "fertilizer_model.json"
)

// Store is the immutable handle over the loaded artifacts. It is built
// once at startup and shared read-only; nothing mutates or reloads it.
type Store struct {
	Soil       *EncoderTable
	Crop       *EncoderTable
	Fertilizer *EncoderTable
	Model      *Forest

	Dir      string
	LoadedAt time.Time
}

// Load reads the four artifacts from dir concurrently. A class-count
// mismatch between the model and the fertilizer encoder is only logged:
// the two files are produced independently, and decoding guards against
// codes the encoder does not know.
func Load(ctx context.Context, dir string, logger *logging.StructuredLogger) (*Store, error) {
	start := time.Now()
	store := &Store{Dir: dir}

	g, gctx := errgroup.WithContext(ctx)

	loadEncoder := func(file string, dst **EncoderTable) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enc, err := LoadEncoderTable(filepath.Join(dir, file))
			if err != nil {
				return err
			}
			*dst = enc
			return nil
		}
	}

	g.Go(loadEncoder(SoilEncoderFile, &store.Soil))
	g.Go(loadEncoder(CropEncoderFile, &store.Crop))
	g.Go(loadEncoder(FertilizerEncoderFile, &store.Fertilizer))
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		model, err := LoadForest(filepath.Join(dir, ModelFile))
		if err != nil {
			return err
		}
		store.Model = model
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load model artifacts from %s: %w", dir, err)
	}

	if store.Model.NClasses != store.Fertilizer.Len() {
		logger.Warn(ctx, "[MODEL_DRIFT] Model class count differs from fertilizer vocabulary", logging.Fields{
			"model_classes":   store.Model.NClasses,
			"encoder_classes": store.Fertilizer.Len(),
			"model_file":      ModelFile,
			"encoder_file":    FertilizerEncoderFile,
		})
	}

	store.LoadedAt = time.Now().UTC()

	logger.Info(ctx, "[MODEL_LOADED] Model artifacts loaded", logging.Fields{
		"dir":         dir,
		"soil_labels": store.Soil.Len(),
		"crop_labels": store.Crop.Len(),
		"fertilizers": store.Fertilizer.Len(),
		"trees":       len(store.Model.Trees),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return store, nil
}
