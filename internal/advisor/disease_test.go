package advisor

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-advisor/internal/models"
)

func TestDiseaseCatalog(t *testing.T) {
	catalog := DiseaseCatalog()
	require.Len(t, catalog, 5)

	names := make([]string, 0, len(catalog))
	for _, rec := range catalog {
		assert.NotEmpty(t, rec.Cause, rec.Name)
		assert.NotEmpty(t, rec.Treatment, rec.Name)
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"Late Blight", "Powdery Mildew", "Early Blight", "Bacterial Leaf Spot", "Leaf Rust"}, names)

	catalog[0].Name = "Changed"
	assert.Equal(t, "Late Blight", DiseaseCatalog()[0].Name)
}

func TestClassifyDisease_OnlyCatalogRecords(t *testing.T) {
	c := NewDiseaseClassifier(nil)
	known := make(map[models.DiseaseRecord]bool)
	for _, rec := range DiseaseCatalog() {
		known[rec] = true
	}

	for i := 0; i < 1000; i++ {
		rec := c.ClassifyDisease([]byte("not really an image"))
		if !known[rec] {
			t.Fatalf("ClassifyDisease() returned record outside the catalog: %+v", rec)
		}
	}
}

func TestClassifyDisease_ApproximatelyUniform(t *testing.T) {
	const trials = 5000
	c := NewDiseaseClassifier(rand.NewPCG(42, 1024))

	counts := make(map[string]int)
	for i := 0; i < trials; i++ {
		counts[c.ClassifyDisease(nil).Name]++
	}

	require.Len(t, counts, 5)
	expected := trials / 5
	for name, n := range counts {
		// Binomial std dev is ~28 here; 150 is over five of them.
		assert.InDelta(t, expected, n, 150, "frequency of %s", name)
	}
}

func TestClassifyDisease_SeededIsDeterministic(t *testing.T) {
	a := NewDiseaseClassifier(rand.NewPCG(7, 7))
	b := NewDiseaseClassifier(rand.NewPCG(7, 7))

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.ClassifyDisease(nil), b.ClassifyDisease([]byte{0xff, 0xd8}))
	}
}

func TestClassifyDisease_ConcurrentUse(t *testing.T) {
	c := NewDiseaseClassifier(rand.NewPCG(1, 2))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = c.ClassifyDisease(nil)
			}
		}()
	}
	wg.Wait()
}
