package segmenter

import "github.com/dvsk/patchseg/internal/encoder"

// Embeddings holds the per-patch feature vectors produced by the feature
// extractor, flattened row-major: patch i occupies
// Data[i*FeatureDim : (i+1)*FeatureDim]. Cycle-scoped.
type Embeddings struct {
	Data       []float32
	NumPatches int
	FeatureDim int
}

// FeatureExtractor produces per-patch embeddings from an encoded input.
type FeatureExtractor interface {
	Extract(in *encoder.Input) (*Embeddings, error)
	Close() error
}

// PatchClassifier scores patch embeddings, returning one foreground
// probability in [0,1] per patch.
type PatchClassifier interface {
	Classify(emb *Embeddings) ([]float32, error)
	Close() error
}
