package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
)

func TestLoadArtifact_EmbeddedDefault(t *testing.T) {
	artifact, err := LoadArtifact("")
	require.NoError(t, err)

	assert.Equal(t, DefaultArtifactVersion, artifact.Version)
	assert.Equal(t, []string{"SAFE", "CAUTION", "FLOOD_RISK", "FLASH_FLOOD_RISK"}, artifact.Classes)
	assert.NotEmpty(t, artifact.Trees)
	assert.Len(t, artifact.Features, features.Count)
}

func TestLoadArtifact_MissingFile(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestLoadArtifact_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o644))

	_, err := LoadArtifact(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestArtifact_Validate(t *testing.T) {
	valid := func() *Artifact {
		return &Artifact{
			Version: "test-v1",
			Classes: []string{"SAFE", "CAUTION", "FLOOD_RISK", "FLASH_FLOOD_RISK"},
			Trees: []Tree{{Nodes: []Node{
				{Feature: features.FeatSlope1h, Threshold: 50, Left: 1, Right: 2},
				{Leaf: []float64{1, 0, 0, 0}},
				{Leaf: []float64{0, 0, 0, 1}},
			}}},
		}
	}

	testCases := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"missing_version", func(a *Artifact) { a.Version = "" }},
		{"wrong_class_order", func(a *Artifact) { a.Classes[0], a.Classes[1] = a.Classes[1], a.Classes[0] }},
		{"unknown_feature", func(a *Artifact) { a.Trees[0].Nodes[0].Feature = "river_mood" }},
		{"no_trees", func(a *Artifact) { a.Trees = nil }},
		{"leaf_width_mismatch", func(a *Artifact) { a.Trees[0].Nodes[1].Leaf = []float64{1, 0} }},
		{"child_points_backwards", func(a *Artifact) { a.Trees[0].Nodes[0].Left = 0 }},
		{"child_out_of_range", func(a *Artifact) { a.Trees[0].Nodes[0].Right = 7 }},
	}

	require.NoError(t, valid().validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			artifact := valid()
			tc.mutate(artifact)
			assert.Error(t, artifact.validate())
		})
	}
}

func TestArtifact_ScoreRoutesEveryTree(t *testing.T) {
	artifact := &Artifact{
		Version: "test-v1",
		Classes: []string{"SAFE", "CAUTION", "FLOOD_RISK", "FLASH_FLOOD_RISK"},
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: features.FeatSlope1h, Threshold: 50, Left: 1, Right: 2},
				{Leaf: []float64{1, 0, 0, 0}},
				{Leaf: []float64{0, 0, 0, 1}},
			}},
			{Nodes: []Node{
				{Feature: features.FeatWaterLevelCm, Threshold: 300, Left: 1, Right: 2},
				{Leaf: []float64{1, 0, 0, 0}},
				{Leaf: []float64{0, 0, 1, 0}},
			}},
		},
	}
	require.NoError(t, artifact.validate())

	calm := &features.Vector{WaterLevelCm: 100, Slope1h: 5}
	assert.Equal(t, []float64{2, 0, 0, 0}, artifact.score(calm))

	surging := &features.Vector{WaterLevelCm: 350, Slope1h: 80}
	assert.Equal(t, []float64{0, 0, 1, 1}, artifact.score(surging))
}
