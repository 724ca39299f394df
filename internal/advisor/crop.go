// Package advisor holds the recommendation decisions: the crop rule
// engine, the fertilizer predictor and the mock disease classifier.
package advisor

import "farm-advisor/internal/models"

// Crop names the rule engine can return
const (
	CropRice        = "Rice"
	CropTea         = "Tea"
	CropSweetPotato = "Sweet Potato"
	CropCotton      = "Cotton"
	CropChickpea    = "Chickpea"
	CropBarley      = "Barley"
	CropSugarcane   = "Sugarcane"
	CropMaize       = "Maize"
	CropWheat       = "Wheat"
	CropMillet      = "Millet"
	CropMustard     = "Mustard"
	CropSoybean     = "Soybean"
)

// CropNames lists every possible RecommendCrop result, acidic tier first
var CropNames = []string{
	CropRice, CropTea, CropSweetPotato,
	CropCotton, CropChickpea, CropBarley,
	CropSugarcane, CropMaize, CropWheat, CropMillet, CropMustard, CropSoybean,
}

// pH tier bounds. Both are exclusive: 5.5 and 7.5 belong to the neutral tier.
const (
	acidicBelowPH   = 5.5
	alkalineAbovePH = 7.5
)

// RecommendCrop maps a soil sample to a crop name. The branch order is
// significant where conditions overlap, and every comparison is strict.
func RecommendCrop(s models.SoilSample) string {
	switch {
	case s.PH < acidicBelowPH:
		return acidicCrop(s)
	case s.PH > alkalineAbovePH:
		return alkalineCrop(s)
	default:
		return neutralCrop(s)
	}
}

func acidicCrop(s models.SoilSample) string {
	switch {
	case s.Rainfall > 200 && s.Temperature > 25:
		return CropRice
	case s.Temperature < 20:
		return CropTea
	default:
		return CropSweetPotato
	}
}

func alkalineCrop(s models.SoilSample) string {
	switch {
	case s.Temperature > 25 && s.Rainfall < 100:
		return CropCotton
	case s.Nitrogen > 40 && s.Phosphorus > 40:
		return CropChickpea
	default:
		return CropBarley
	}
}

func neutralCrop(s models.SoilSample) string {
	if s.Nitrogen > 80 && s.Phosphorus > 40 && s.Potassium > 40 {
		switch {
		case s.Temperature > 30 && s.Humidity > 80:
			return CropSugarcane
		case s.Temperature > 25 && s.Rainfall > 200:
			return CropMaize
		default:
			return CropWheat
		}
	}

	if s.Nitrogen < 40 {
		return CropMillet
	}

	if s.Temperature > 30 && s.Rainfall < 100 {
		return CropMustard
	}
	return CropSoybean
}
