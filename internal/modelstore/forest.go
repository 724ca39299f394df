package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ForestFormat identifies the tree-ensemble artifact layout
const ForestFormat = "tree_ensemble/v1"

// leaf marks a node without children
const leaf = -1

// ErrFeatureCount is returned when a feature vector has the wrong width
var ErrFeatureCount = errors.New("feature vector length does not match model")

// Tree is one decision tree in array-of-nodes form. Node 0 is the root;
// for node i, ChildrenLeft[i] == -1 marks a leaf.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a trained tree-ensemble classifier. It is immutable after
// loading and safe for concurrent Predict calls.
type Forest struct {
	Format       string   `json:"format"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names"`
	NClasses     int      `json:"n_classes"`
	Trees        []Tree   `json:"trees"`
}

// LoadForest reads and validates a forest artifact
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	return &f, nil
}

// Validate checks the structural invariants Predict relies on
func (f *Forest) Validate() error {
	if f.Format != ForestFormat {
		return fmt.Errorf("unsupported format %q, want %q", f.Format, ForestFormat)
	}
	if f.NFeatures < 1 {
		return errors.New("n_features must be positive")
	}
	if len(f.FeatureNames) != 0 && len(f.FeatureNames) != f.NFeatures {
		return fmt.Errorf("feature_names has %d entries, n_features is %d", len(f.FeatureNames), f.NFeatures)
	}
	if f.NClasses < 1 {
		return errors.New("n_classes must be positive")
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}

	for i := range f.Trees {
		if err := f.validateTree(&f.Trees[i]); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return nil
}

func (f *Forest) validateTree(t *Tree) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}

	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]

		if len(t.Value[node]) != f.NClasses {
			return fmt.Errorf("node %d: value has %d classes, want %d", node, len(t.Value[node]), f.NClasses)
		}

		if left == leaf {
			if right != leaf {
				return fmt.Errorf("node %d: leaf with a right child", node)
			}
			total := 0.0
			for _, w := range t.Value[node] {
				if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					return fmt.Errorf("node %d: invalid class weight %v", node, w)
				}
				total += w
			}
			if total <= 0 {
				return fmt.Errorf("node %d: leaf has no class weight", node)
			}
			continue
		}

		// Children strictly after their parent rules out cycles.
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("node %d: child index out of range", node)
		}
		if t.Feature[node] < 0 || t.Feature[node] >= f.NFeatures {
			return fmt.Errorf("node %d: feature %d out of range", node, t.Feature[node])
		}
		if math.IsNaN(t.Threshold[node]) {
			return fmt.Errorf("node %d: NaN threshold", node)
		}
	}

	return nil
}

// InputWidth returns the feature vector length Predict accepts
func (f *Forest) InputWidth() int {
	return f.NFeatures
}

// InputNames returns the training column names, or nil if the artifact
// does not record them
func (f *Forest) InputNames() []string {
	return append([]string(nil), f.FeatureNames...)
}

// Predict returns the class index with the highest summed, per-tree
// normalized leaf weight. Ties resolve to the lowest class index.
func (f *Forest) Predict(features []float64) (int, error) {
	if len(features) != f.NFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), f.NFeatures)
	}

	proba := make([]float64, f.NClasses)
	for i := range f.Trees {
		weights := f.Trees[i].leafValue(features)

		total := 0.0
		for _, w := range weights {
			total += w
		}
		for c, w := range weights {
			proba[c] += w / total
		}
	}

	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}

	return best, nil
}

func (t *Tree) leafValue(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}
