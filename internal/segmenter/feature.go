package segmenter

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dvsk/patchseg/internal/encoder"
	"github.com/dvsk/patchseg/internal/inference"
)

// Extractor runs the heavy feature-extraction model. It is loaded once at
// startup and never replaced for the process lifetime, so concurrent
// read-only use across cycles is safe.
type Extractor struct {
	session    *inference.Session
	inputName  string
	outputName string
}

// NewExtractor loads the feature model. The model must expose exactly one
// input; the first output is used when several are present.
func NewExtractor(modelPath string) (*Extractor, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect %s: %v", inference.ErrModelLoad, modelPath, err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: feature model must have one input, has %d",
			inference.ErrModelLoad, len(inputs))
	}
	if len(outputs) < 1 {
		return nil, fmt.Errorf("%w: feature model has no outputs", inference.ErrModelLoad)
	}

	inputName := inputs[0].Name
	outputName := outputs[0].Name

	session, err := inference.NewSession(modelPath, []string{inputName}, []string{outputName})
	if err != nil {
		return nil, fmt.Errorf("failed to create feature session: %w", err)
	}

	return &Extractor{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

// Extract performs one forward pass, producing the per-patch embedding
// tensor. The feature dimension is derived from the output element count at
// runtime rather than hard-coded.
func (e *Extractor) Extract(in *encoder.Input) (*Embeddings, error) {
	if e.session == nil || !e.session.Ready() {
		return nil, inference.ErrSessionNotReady
	}

	height := int64(in.Grid.PixelHeight())
	width := int64(in.Grid.PixelWidth())
	inputTensor, err := inference.CreateTensor([]int64{1, 3, height, width}, in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", inference.ErrInference, err)
	}
	defer inputTensor.Destroy()

	// Output shape depends on the model; let the runtime allocate it.
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, err
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: feature output is not a float tensor", inference.ErrInference)
	}

	raw := out.GetData()
	numPatches := in.Grid.NumPatches()
	if numPatches == 0 || len(raw) == 0 || len(raw)%numPatches != 0 {
		return nil, fmt.Errorf("%w: %d embedding values do not divide into %d patches",
			encoder.ErrInvalidGeometry, len(raw), numPatches)
	}

	// The tensor's backing store dies with the tensor; copy out.
	data := make([]float32, len(raw))
	copy(data, raw)

	return &Embeddings{
		Data:       data,
		NumPatches: numPatches,
		FeatureDim: len(raw) / numPatches,
	}, nil
}

// Close releases the feature session.
func (e *Extractor) Close() error {
	return e.session.Destroy()
}
