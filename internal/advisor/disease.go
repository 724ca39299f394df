package advisor

import (
	"math/rand/v2"
	"sync"
	"time"

	"farm-advisor/internal/models"
)

var diseaseCatalog = [...]models.DiseaseRecord{
	{
		Name:      "Late Blight",
		Cause:     "Caused by the fungus Phytophthora infestans. Spreads rapidly in cool, wet weather with temperatures between 10-24°C.",
		Treatment: "Use fungicides containing copper or chlorothalonil. Remove and destroy infected plants. Ensure proper spacing for air circulation. Plant resistant varieties.",
	},
	{
		Name:      "Powdery Mildew",
		Cause:     "Caused by various fungi species. Thrives in humid conditions with moderate temperatures. Poor air circulation contributes to its spread.",
		Treatment: "Apply sulfur-based fungicides or neem oil. Increase plant spacing for better air circulation. Remove and destroy affected leaves. Use resistant varieties when possible.",
	},
	{
		Name:      "Early Blight",
		Cause:     "Caused by the fungus Alternaria solani. Favored by warm, humid conditions and extended periods of leaf wetness.",
		Treatment: "Apply copper-based fungicides. Practice crop rotation. Remove and destroy infected plants. Maintain proper plant spacing and avoid overhead watering.",
	},
	{
		Name:      "Bacterial Leaf Spot",
		Cause:     "Caused by various bacteria species. Spread through water splashing, contaminated tools, and infected seeds. Common in warm, wet conditions.",
		Treatment: "Apply copper-based bactericides. Avoid overhead irrigation. Remove infected plants. Sanitize garden tools. Use disease-free seeds or transplants.",
	},
	{
		Name:      "Leaf Rust",
		Cause:     "Caused by fungi in the Puccinia genus. Spores spread easily by wind. Development is favored by high humidity and moderate temperatures.",
		Treatment: "Apply fungicides with active ingredients like tebuconazole or propiconazole. Remove infected plant material. Increase air circulation. Plant resistant varieties.",
	},
}

// DiseaseCatalog returns a copy of every record the classifier can return
func DiseaseCatalog() []models.DiseaseRecord {
	return append([]models.DiseaseRecord(nil), diseaseCatalog[:]...)
}

// DiseaseClassifier is a stand-in for an image model. It ignores the image
// and picks a catalog record uniformly at random.
type DiseaseClassifier struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiseaseClassifier uses src for its choices; a nil src is seeded from
// the clock.
func NewDiseaseClassifier(src rand.Source) *DiseaseClassifier {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
	return &DiseaseClassifier{rng: rand.New(src)}
}

// ClassifyDisease returns one of the catalog records. The image content is
// not inspected.
func (c *DiseaseClassifier) ClassifyDisease(_ []byte) models.DiseaseRecord {
	c.mu.Lock()
	i := c.rng.IntN(len(diseaseCatalog))
	c.mu.Unlock()

	return diseaseCatalog[i]
}
