package config

import (
	"encoding/json"
	"os"

	"github.com/dvsk/patchseg/internal/encoder"
)

// Settings holds runtime configuration for the segmentation pipeline.
// Fields may be loaded from a JSON file and overridden by command-line
// flags. The classifier path is written back after every successful
// hot-swap so the artifact survives a restart without re-fetching.
type Settings struct {
	FeatureModelPath string `json:"feature_model_path"`
	ClassifierPath   string `json:"classifier_path"`

	InputSize           int     `json:"input_size"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
	LargestAreaOnly     bool    `json:"largest_area_only"`

	CameraIndex    int `json:"camera_index"`
	SampleInterval int `json:"sample_interval"`

	TrainingURL   string `json:"training_url"`
	TrainingToken string `json:"training_token"`
}

// Default returns a Settings populated with standard defaults.
func Default() *Settings {
	return &Settings{
		FeatureModelPath:    "models/feature_extractor.onnx",
		InputSize:           512,
		SimilarityThreshold: 0.5,
		LargestAreaOnly:     false,
		CameraIndex:         0,
		SampleInterval:      3,
	}
}

// Validate clamps values to safe ranges.
func (s *Settings) Validate() error {
	if !encoder.ValidInputSize(s.InputSize) {
		s.InputSize = 512
	}
	if s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1 {
		s.SimilarityThreshold = 0.5
	}
	if s.SampleInterval < 1 {
		s.SampleInterval = 3
	}
	if s.CameraIndex < 0 {
		s.CameraIndex = 0
	}
	return nil
}

// Load reads settings from the given JSON file. A missing file yields
// defaults without an error; a malformed file yields defaults plus the error.
func Load(path string) (*Settings, error) {
	s := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return s, err
	}
	_ = s.Validate()
	return s, nil
}

// Save writes the settings to the given path in JSON format.
func (s *Settings) Save(path string) error {
	_ = s.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
