package risk

import (
	_ "embed" // embed the default model artifact
	"fmt"
	"os"

	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
	"gopkg.in/yaml.v3"
)

//go:embed model_default.yaml
var embeddedArtifact []byte

// DefaultArtifactVersion identifies the embedded model artifact.
const DefaultArtifactVersion = "jalscan-risk-ensemble-v1"

// Node is one node of a decision tree. Internal nodes route on a feature
// threshold; leaves carry one additive score per class.
type Node struct {
	Feature   string    `yaml:"feature,omitempty"`
	Threshold float64   `yaml:"threshold,omitempty"`
	Left      int       `yaml:"left,omitempty"`  // child index when value <= threshold
	Right     int       `yaml:"right,omitempty"` // child index when value > threshold
	Leaf      []float64 `yaml:"leaf,omitempty"`  // per-class scores, nil for internal nodes
}

// Tree is a single decision tree, nodes indexed from the root at 0.
type Tree struct {
	Nodes []Node `yaml:"nodes"`
}

// Artifact is the trained multi-class ensemble the engine consumes. Training
// happens offline (balanced resampling, cross-validated); the engine only
// loads the result. An artifact is read-only after load.
type Artifact struct {
	Version      string             `yaml:"version"`
	Classes      []string           `yaml:"classes"`
	Features     []string           `yaml:"features"`
	FeatureMeans map[string]float64 `yaml:"feature_means"` // training-time means
	Importances  map[string]float64 `yaml:"importances"`
	Trees        []Tree             `yaml:"trees"`
}

// LoadArtifact reads and validates a model artifact. An empty path loads the
// embedded default.
func LoadArtifact(path string) (*Artifact, error) {
	data := embeddedArtifact
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Newf("failed to read model artifact: %w", err).
				Component("risk").
				Category(errors.CategoryModelLoad).
				ModelContext(path, "").
				Build()
		}
		data = fileData
	}

	artifact := &Artifact{}
	if err := yaml.Unmarshal(data, artifact); err != nil {
		return nil, errors.Newf("failed to parse model artifact: %w", err).
			Component("risk").
			Category(errors.CategoryModelLoad).
			ModelContext(path, "").
			Build()
	}

	if err := artifact.validate(); err != nil {
		return nil, errors.New(fmt.Errorf("model artifact validation failed: %w", err)).
			Component("risk").
			Category(errors.CategoryModelInit).
			ModelContext(path, artifact.Version).
			Build()
	}

	return artifact, nil
}

// validate checks the artifact's structural invariants: the known class set,
// known feature names, in-range tree indices and per-class leaf widths.
func (a *Artifact) validate() error {
	if a.Version == "" {
		return fmt.Errorf("artifact has no version")
	}
	if len(a.Classes) != len(labelNames) {
		return fmt.Errorf("expected %d classes, got %d", len(labelNames), len(a.Classes))
	}
	for i, class := range a.Classes {
		if class != labelNames[i] {
			return fmt.Errorf("class %d is %q, expected %q", i, class, labelNames[i])
		}
	}

	known := make(map[string]bool, len(features.Names))
	for _, name := range features.Names {
		known[name] = true
	}
	for _, name := range a.Features {
		if !known[name] {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	for name := range a.FeatureMeans {
		if !known[name] {
			return fmt.Errorf("feature mean for unknown feature %q", name)
		}
	}
	for name := range a.Importances {
		if !known[name] {
			return fmt.Errorf("importance for unknown feature %q", name)
		}
	}

	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact has no trees")
	}
	for ti := range a.Trees {
		tree := &a.Trees[ti]
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni := range tree.Nodes {
			node := &tree.Nodes[ni]
			if node.Leaf != nil {
				if len(node.Leaf) != len(a.Classes) {
					return fmt.Errorf("tree %d node %d leaf has %d scores, expected %d", ti, ni, len(node.Leaf), len(a.Classes))
				}
				continue
			}
			if !known[node.Feature] {
				return fmt.Errorf("tree %d node %d routes on unknown feature %q", ti, ni, node.Feature)
			}
			if node.Left <= ni || node.Left >= len(tree.Nodes) ||
				node.Right <= ni || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has out-of-range children", ti, ni)
			}
		}
	}

	return nil
}

// score accumulates the additive per-class scores of every tree for a vector.
func (a *Artifact) score(fv *features.Vector) []float64 {
	scores := make([]float64, len(a.Classes))
	for ti := range a.Trees {
		leaf := a.Trees[ti].route(fv)
		for i, s := range leaf {
			scores[i] += s
		}
	}
	return scores
}

// route walks a tree from the root to a leaf for the given vector.
func (t *Tree) route(fv *features.Vector) []float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Leaf != nil {
			return node.Leaf
		}
		value, _ := fv.Get(node.Feature)
		if value <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
