package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dvsk/patchseg/internal/encoder"
	"github.com/dvsk/patchseg/internal/frame"
	"github.com/dvsk/patchseg/internal/inference"
	"github.com/dvsk/patchseg/internal/mask"
	"github.com/dvsk/patchseg/internal/segmenter"
)

// Config holds pipeline configuration. Mutations posted through the setters
// take effect on the next processed frame, never mid-flight.
type Config struct {
	FeatureModelPath string
	// ClassifierPath is the persisted classifier artifact from a previous
	// run; empty when none has been trained yet.
	ClassifierPath      string
	InputSize           int
	SimilarityThreshold float32
	LargestAreaOnly     bool
}

// ExtractorFactory builds a feature extractor from a model file.
type ExtractorFactory func(modelPath string) (segmenter.FeatureExtractor, error)

// ClassifierFactory builds a patch classifier from a model file.
type ClassifierFactory func(modelPath string) (segmenter.PatchClassifier, error)

// Deps are the pipeline's pluggable collaborators. Nil factories default to
// the real ONNX engines, which require inference.Initialize to have been
// called first.
type Deps struct {
	NewExtractor  ExtractorFactory
	NewClassifier ClassifierFactory
	// Persist, when set, is invoked with the artifact path after every
	// successful classifier hot-swap.
	Persist func(classifierPath string)
}

// Pipeline owns both model sessions and the single background worker that
// performs all preprocessing, inference and post-processing. At most one
// inference cycle is in flight at any time; frames submitted while the
// worker is busy are dropped, not queued.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	ctrl    chan func()
	frames  chan *frame.Raw
	updates chan Update
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	status    atomic.Int32
	drops     atomic.Uint64

	// Worker-owned state; touched only from the worker goroutine.
	running     bool
	extractor   segmenter.FeatureExtractor
	classifier  segmenter.PatchClassifier
	lastOverlay *mask.Overlay
	lastErr     string
}

// New creates a pipeline and starts its background worker. The pipeline is
// Idle until Initialize is called.
func New(cfg Config, deps Deps, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.NewExtractor == nil {
		deps.NewExtractor = func(path string) (segmenter.FeatureExtractor, error) {
			return segmenter.NewExtractor(path)
		}
	}
	if deps.NewClassifier == nil {
		deps.NewClassifier = func(path string) (segmenter.PatchClassifier, error) {
			return segmenter.NewClassifier(path)
		}
	}

	p := &Pipeline{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		ctrl:    make(chan func(), 16),
		frames:  make(chan *frame.Raw),
		updates: make(chan Update, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Status returns the current orchestrator state.
func (p *Pipeline) Status() Status {
	return Status(p.status.Load())
}

// Updates returns the observable state stream. The channel holds the latest
// snapshot only; slow consumers see the most recent state, not a backlog.
func (p *Pipeline) Updates() <-chan Update {
	return p.updates
}

// Drops returns how many submitted frames were dropped because a cycle was
// already in flight.
func (p *Pipeline) Drops() uint64 {
	return p.drops.Load()
}

// Initialize loads the feature model and, when a persisted classifier path
// is configured, the classifier. Feature-load failure is fatal and moves the
// pipeline to Error; a missing or broken classifier leaves it ModelsReady.
// Calling Initialize again from Error performs a full reload.
func (p *Pipeline) Initialize() {
	p.post(func() {
		if st := p.Status(); st != StatusIdle && st != StatusError {
			return
		}
		p.closeEngines()
		p.setStatus(StatusLoadingModels)
		p.publish()

		ext, err := p.deps.NewExtractor(p.cfg.FeatureModelPath)
		if err != nil {
			p.lastErr = err.Error()
			p.setStatus(StatusError)
			p.logger.Error("feature model load failed",
				zap.String("path", p.cfg.FeatureModelPath), zap.Error(err))
			p.publish()
			return
		}
		p.extractor = ext
		p.logger.Info("feature model loaded", zap.String("path", p.cfg.FeatureModelPath))

		if p.cfg.ClassifierPath != "" {
			cls, err := p.deps.NewClassifier(p.cfg.ClassifierPath)
			if err != nil {
				p.lastErr = err.Error()
				p.logger.Warn("persisted classifier load failed",
					zap.String("path", p.cfg.ClassifierPath), zap.Error(err))
			} else {
				p.classifier = cls
				p.logger.Info("classifier loaded", zap.String("path", p.cfg.ClassifierPath))
			}
		}

		p.setStatus(StatusModelsReady)
		p.publish()
	})
}

// SubmitFrame offers one sampled frame to the worker. It never blocks: the
// frame is accepted only when the worker is idle, otherwise it is dropped
// and false is returned. The frame's buffers stay owned by the caller and
// are not retained past the cycle.
func (p *Pipeline) SubmitFrame(raw *frame.Raw) bool {
	select {
	case p.frames <- raw:
		return true
	default:
		p.drops.Add(1)
		return false
	}
}

// SetThreshold updates the similarity threshold, clamped to [0,1], starting
// with the next submitted frame.
func (p *Pipeline) SetThreshold(v float32) {
	p.post(func() {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		p.cfg.SimilarityThreshold = v
	})
}

// SetLargestAreaOnly toggles the largest-area filter for subsequent frames.
func (p *Pipeline) SetLargestAreaOnly(on bool) {
	p.post(func() {
		p.cfg.LargestAreaOnly = on
	})
}

// SetInputSize switches the encoded input size. A geometry change must not
// race with an in-flight cycle, so the pipeline leaves Running and the
// caller has to toggle it back on.
func (p *Pipeline) SetInputSize(size int) {
	p.post(func() {
		if !encoder.ValidInputSize(size) {
			p.lastErr = fmt.Sprintf("unsupported input size %d", size)
			p.publish()
			return
		}
		p.cfg.InputSize = size
		if p.Status() == StatusRunning {
			p.running = false
			p.setStatus(StatusModelsReady)
		}
		p.publish()
	})
}

// LoadClassifier hot-swaps the classifier session. The previous session is
// closed only after the replacement is fully constructed and validated; on
// failure the previous session stays authoritative and the error surfaces
// through the state stream. Swaps are applied between cycles, so an
// in-flight classification always completes against the session it started
// with.
func (p *Pipeline) LoadClassifier(path string) {
	p.post(func() {
		if st := p.Status(); st != StatusModelsReady && st != StatusRunning {
			p.lastErr = "cannot load classifier before models are loaded"
			p.publish()
			return
		}

		next, err := p.deps.NewClassifier(path)
		if err != nil {
			p.lastErr = err.Error()
			p.logger.Warn("classifier hot-swap failed",
				zap.String("path", path), zap.Error(err))
			p.publish()
			return
		}

		old := p.classifier
		p.classifier = next
		if old != nil {
			if err := old.Close(); err != nil {
				p.logger.Warn("failed to close previous classifier", zap.Error(err))
			}
		}
		p.lastErr = ""
		if p.deps.Persist != nil {
			p.deps.Persist(path)
		}
		p.logger.Info("classifier hot-swapped", zap.String("path", path))
		p.publish()
	})
}

// SetRunning toggles frame processing. Turning it on requires ModelsReady
// with a loaded classifier; turning it off does not abort an in-flight
// cycle, whose result the caller is expected to discard.
func (p *Pipeline) SetRunning(on bool) {
	p.post(func() {
		if on {
			if p.Status() != StatusModelsReady {
				return
			}
			if p.classifier == nil {
				p.lastErr = "no classifier loaded"
				p.publish()
				return
			}
			p.running = true
			p.setStatus(StatusRunning)
			p.publish()
			return
		}
		if p.Status() == StatusRunning {
			p.running = false
			p.setStatus(StatusModelsReady)
			p.publish()
		}
	})
}

// Close stops the worker and releases both sessions. Blocks until the
// worker has exited.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
	return nil
}

func (p *Pipeline) post(fn func()) {
	select {
	case p.ctrl <- fn:
	case <-p.quit:
	}
}

func (p *Pipeline) setStatus(s Status) {
	p.status.Store(int32(s))
}

// publish pushes a snapshot to the updates channel, replacing any stale one.
func (p *Pipeline) publish() {
	u := Update{Status: p.Status(), Overlay: p.lastOverlay, Err: p.lastErr}
	for {
		select {
		case p.updates <- u:
			return
		default:
			select {
			case <-p.updates:
			default:
			}
		}
	}
}

func (p *Pipeline) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			p.closeEngines()
			return
		case fn := <-p.ctrl:
			fn()
		case raw := <-p.frames:
			p.runCycle(raw)
		}
	}
}

func (p *Pipeline) closeEngines() {
	if p.classifier != nil {
		if err := p.classifier.Close(); err != nil {
			p.logger.Warn("failed to close classifier", zap.Error(err))
		}
		p.classifier = nil
	}
	if p.extractor != nil {
		if err := p.extractor.Close(); err != nil {
			p.logger.Warn("failed to close feature extractor", zap.Error(err))
		}
		p.extractor = nil
	}
}

// runCycle executes one full cycle. Per-cycle errors are caught here: they
// are logged, surfaced as an advisory on the state stream, and never corrupt
// cross-cycle state.
func (p *Pipeline) runCycle(raw *frame.Raw) {
	if !p.running {
		return
	}

	overlay, err := p.process(raw)
	if err != nil {
		p.lastErr = err.Error()
		p.logger.Warn("cycle skipped", zap.Error(err))
		p.publish()
		return
	}

	p.lastOverlay = overlay
	p.lastErr = ""
	p.publish()
}

// process runs the stages in strict pipeline order. Every native buffer is
// cycle-scoped: the Mats close via defer and the tensors are destroyed
// inside the engines on all exit paths.
func (p *Pipeline) process(raw *frame.Raw) (*mask.Overlay, error) {
	rgb, err := frame.Normalize(raw)
	if err != nil {
		return nil, err
	}
	defer rgb.Close()

	in, err := encoder.Encode(rgb, p.cfg.InputSize)
	if err != nil {
		return nil, err
	}

	emb, err := p.extractor.Extract(in)
	if err != nil {
		return nil, err
	}

	if p.classifier == nil {
		return nil, inference.ErrSessionNotReady
	}
	scores, err := p.classifier.Classify(emb)
	if err != nil {
		return nil, err
	}

	if p.cfg.LargestAreaOnly {
		if err := mask.FilterLargestRegion(scores, in.Grid, p.cfg.SimilarityThreshold); err != nil {
			return nil, err
		}
	}

	return mask.Render(scores, in.Grid, p.cfg.SimilarityThreshold), nil
}
