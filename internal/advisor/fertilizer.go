package advisor

import (
	"errors"
	"fmt"

	"farm-advisor/internal/models"
)

// FeatureCount is the width of the classifier's input vector
const FeatureCount = 10

// FeatureNames is the column order the classifier was trained on
var FeatureNames = [FeatureCount]string{
	"Temperature", "Moisture", "Rainfall", "PH",
	"Nitrogen", "Phosphorous", "Potassium", "Carbon",
	"Soil", "Crop",
}

// ErrUnknownLabel matches any label or class that an encoder does not know
var ErrUnknownLabel = models.ErrUnknownLabel

// UnknownLabelError is returned for labels outside a trained vocabulary
type UnknownLabelError = models.UnknownLabelError

// Encoder converts between categorical labels and the integer codes the
// classifier was trained with.
type Encoder interface {
	Transform(label string) (int, error)
	InverseTransform(code int) (string, error)
	Classes() []string
}

// Classifier is the trained model: a feature vector in, a class code out
type Classifier interface {
	Predict(features []float64) (int, error)
}

// Schema is implemented by classifiers that describe their input columns.
// InputNames may be empty when the artifact does not record them.
type Schema interface {
	InputWidth() int
	InputNames() []string
}

// Vocabulary bundles the three encoders the predictor depends on
type Vocabulary struct {
	Soil       Encoder
	Crop       Encoder
	Fertilizer Encoder
}

// FertilizerPredictor runs encode, infer and decode around a classifier.
// It holds no mutable state and is safe for concurrent use.
type FertilizerPredictor struct {
	vocab Vocabulary
	model Classifier
}

// NewFertilizerPredictor wires the encoders and the classifier together
func NewFertilizerPredictor(vocab Vocabulary, model Classifier) (*FertilizerPredictor, error) {
	if vocab.Soil == nil || vocab.Crop == nil || vocab.Fertilizer == nil {
		return nil, errors.New("fertilizer predictor requires soil, crop and fertilizer encoders")
	}
	if model == nil {
		return nil, errors.New("fertilizer predictor requires a classifier")
	}
	if schema, ok := model.(Schema); ok {
		if err := checkSchema(schema); err != nil {
			return nil, err
		}
	}

	return &FertilizerPredictor{vocab: vocab, model: model}, nil
}

// PredictFertilizer returns the fertilizer name for a query. Unknown soil or
// crop labels, and predicted classes the fertilizer encoder cannot decode,
// fail with *UnknownLabelError.
func (p *FertilizerPredictor) PredictFertilizer(q models.FertilizerQuery) (string, error) {
	soil, err := p.vocab.Soil.Transform(q.Soil)
	if err != nil {
		return "", err
	}
	crop, err := p.vocab.Crop.Transform(q.Crop)
	if err != nil {
		return "", err
	}

	features := []float64{
		q.Temperature, q.Moisture, q.Rainfall, q.PH,
		q.Nitrogen, q.Phosphorus, q.Potassium, q.Carbon,
		float64(soil), float64(crop),
	}

	class, err := p.model.Predict(features)
	if err != nil {
		return "", fmt.Errorf("fertilizer model inference failed: %w", err)
	}

	// The model and the fertilizer encoder are separate artifacts; a class
	// the encoder does not know surfaces here as UnknownLabelError.
	return p.vocab.Fertilizer.InverseTransform(class)
}

// ListCropAndSoilVocabulary returns the trained crop and soil labels in
// encoder order. Each call returns fresh slices with identical contents.
func (p *FertilizerPredictor) ListCropAndSoilVocabulary() (crops, soils []string) {
	return p.vocab.Crop.Classes(), p.vocab.Soil.Classes()
}

// checkSchema rejects a classifier trained on a different column layout
func checkSchema(schema Schema) error {
	if w := schema.InputWidth(); w != FeatureCount {
		return fmt.Errorf("fertilizer model expects %d features, predictor supplies %d", w, FeatureCount)
	}

	names := schema.InputNames()
	if len(names) == 0 {
		return nil
	}
	if len(names) != FeatureCount {
		return fmt.Errorf("fertilizer model names %d features, predictor supplies %d", len(names), FeatureCount)
	}
	for i, name := range names {
		if name != FeatureNames[i] {
			return fmt.Errorf("fertilizer model feature %d is %q, predictor supplies %q", i, name, FeatureNames[i])
		}
	}
	return nil
}
