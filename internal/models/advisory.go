package models

import (
	"math"
)

// SoilSample holds the seven soil and climate readings the crop rule
// engine decides on. No ranges are enforced; values only have to be finite.
type SoilSample struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Validate rejects NaN and infinite readings.
// The rule engine itself never calls this; callers do, before using a sample.
func (s SoilSample) Validate() error {
	return finite(
		named{"nitrogen", s.Nitrogen},
		named{"phosphorus", s.Phosphorus},
		named{"potassium", s.Potassium},
		named{"temperature", s.Temperature},
		named{"humidity", s.Humidity},
		named{"ph", s.PH},
		named{"rainfall", s.Rainfall},
	)
}

// FertilizerQuery is the raw input of a fertilizer prediction. Soil and
// Crop are categorical labels that must belong to the trained vocabulary.
type FertilizerQuery struct {
	Temperature float64 `json:"temperature"`
	Moisture    float64 `json:"moisture"`
	Rainfall    float64 `json:"rainfall"`
	PH          float64 `json:"ph"`
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	Carbon      float64 `json:"carbon"`
	Soil        string  `json:"soil"`
	Crop        string  `json:"crop"`
}

// Validate rejects NaN/Inf readings and empty labels
func (q FertilizerQuery) Validate() error {
	if err := finite(
		named{"temperature", q.Temperature},
		named{"moisture", q.Moisture},
		named{"rainfall", q.Rainfall},
		named{"ph", q.PH},
		named{"nitrogen", q.Nitrogen},
		named{"phosphorus", q.Phosphorus},
		named{"potassium", q.Potassium},
		named{"carbon", q.Carbon},
	); err != nil {
		return err
	}

	if q.Soil == "" {
		return &ValidationError{Field: "soil", Value: q.Soil, Message: "soil type is required"}
	}
	if q.Crop == "" {
		return &ValidationError{Field: "crop", Value: q.Crop, Message: "crop type is required"}
	}

	return nil
}

// DiseaseRecord is one entry of the disease catalog
type DiseaseRecord struct {
	Name      string `json:"disease_name"`
	Cause     string `json:"disease_cause"`
	Treatment string `json:"disease_cure"`
}

type named struct {
	field string
	value float64
}

func finite(values ...named) error {
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return &ValidationError{
				Field:   v.field,
				Value:   formatFloat(v.value),
				Message: v.field + " must be a finite number",
			}
		}
	}
	return nil
}
