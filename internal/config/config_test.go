package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestValidateClamps(t *testing.T) {
	s := &Settings{
		InputSize:           999,
		SimilarityThreshold: 1.5,
		SampleInterval:      0,
		CameraIndex:         -2,
	}
	require.NoError(t, s.Validate())

	assert.Equal(t, 512, s.InputSize)
	assert.Equal(t, float32(0.5), s.SimilarityThreshold)
	assert.Equal(t, 3, s.SampleInterval)
	assert.Equal(t, 0, s.CameraIndex)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segcam.json")

	s := Default()
	s.ClassifierPath = "trained/classifier.onnx"
	s.InputSize = 768
	s.SimilarityThreshold = 0.8
	s.LargestAreaOnly = true
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadMalformedKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segcam.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Default().InputSize, s.InputSize)
}
