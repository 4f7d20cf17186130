package segmenter

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dvsk/patchseg/internal/inference"
)

// Classifier runs the small, hot-swappable patch classifier. The export
// format is a two-output model: an integer label per patch, and a flat
// probability tensor alternating background/foreground pairs, foreground at
// odd offsets. Which of the two outputs carries the probabilities is
// determined by shape at run time rather than assumed from output order.
type Classifier struct {
	session     *inference.Session
	inputName   string
	outputNames []string
}

// NewClassifier loads a classifier artifact and validates its I/O contract:
// exactly one input and exactly two outputs.
func NewClassifier(modelPath string) (*Classifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect %s: %v", inference.ErrModelLoad, modelPath, err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: classifier must have one input, has %d",
			inference.ErrModelLoad, len(inputs))
	}
	if len(outputs) != 2 {
		return nil, fmt.Errorf("%w: classifier must have two outputs (labels, probabilities), has %d",
			inference.ErrModelLoad, len(outputs))
	}

	inputName := inputs[0].Name
	outputNames := []string{outputs[0].Name, outputs[1].Name}

	session, err := inference.NewSession(modelPath, []string{inputName}, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier session: %w", err)
	}

	return &Classifier{
		session:     session,
		inputName:   inputName,
		outputNames: outputNames,
	}, nil
}

// Classify scores every patch embedding, returning one foreground
// probability per patch.
func (c *Classifier) Classify(emb *Embeddings) ([]float32, error) {
	if c.session == nil || !c.session.Ready() {
		return nil, inference.ErrSessionNotReady
	}

	inputTensor, err := inference.CreateTensor(
		[]int64{int64(emb.NumPatches), int64(emb.FeatureDim)},
		emb.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embedding tensor: %v", inference.ErrInference, err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := c.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, err
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	probs, err := findProbabilities(outputs, emb.NumPatches)
	if err != nil {
		return nil, err
	}

	scores := make([]float32, emb.NumPatches)
	for i := range scores {
		scores[i] = probs[2*i+1]
	}
	return scores, nil
}

// findProbabilities picks the output carrying per-patch probability pairs:
// the float tensor with exactly 2*numPatches elements. The other output is
// the integer label tensor, which the pipeline does not consume.
func findProbabilities(outputs []ort.Value, numPatches int) ([]float32, error) {
	for _, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			continue
		}
		data := t.GetData()
		if len(data) == 2*numPatches {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: no classifier output has %d probability pairs",
		inference.ErrInference, numPatches)
}

// Close releases the classifier session.
func (c *Classifier) Close() error {
	return c.session.Destroy()
}
