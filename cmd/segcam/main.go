package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dvsk/patchseg/internal/camera"
	"github.com/dvsk/patchseg/internal/config"
	"github.com/dvsk/patchseg/internal/inference"
	"github.com/dvsk/patchseg/internal/mask"
	"github.com/dvsk/patchseg/internal/pipeline"
	"github.com/dvsk/patchseg/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread. Required on macOS for
	// OpenCV's highgui window creation.
	runtime.LockOSThread()
}

type cliFlags struct {
	ConfigPath string
	Feature    string
	Classifier string
	CameraIdx  int
	InputSize  int
	Threshold  float64
	Largest    bool
	Sample     int
	Preview    bool
	Watch      bool
	ORTLib     string
	Debug      bool
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() cliFlags {
	f := cliFlags{}

	flag.StringVar(&f.ConfigPath, "config", "segcam.json", "Settings file (classifier path persists here)")
	flag.StringVar(&f.Feature, "feature", "", "Feature extractor model (overrides config)")
	flag.StringVar(&f.Classifier, "classifier", "", "Classifier model to hot-swap in at startup")
	flag.IntVar(&f.CameraIdx, "camera", -1, "Camera device index (overrides config)")
	flag.IntVar(&f.InputSize, "size", 0, "Input size: 320, 400, 512 or 768 (overrides config)")
	flag.Float64Var(&f.Threshold, "threshold", -1, "Similarity threshold in [0,1] (overrides config)")
	flag.BoolVar(&f.Largest, "largest", false, "Keep only the largest foreground region")
	flag.IntVar(&f.Sample, "sample", 0, "Process every Nth captured frame (overrides config)")
	flag.BoolVar(&f.Preview, "preview", true, "Show preview window")
	flag.BoolVar(&f.Watch, "watch", false, "Reload the classifier when its file changes on disk")
	flag.StringVar(&f.ORTLib, "ortlib", "", "Path to the ONNX Runtime shared library")
	flag.BoolVar(&f.Debug, "debug", false, "Verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "segcam - real-time few-shot instance segmentation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: segcam [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  segcam --feature models/feature_extractor.onnx\n")
		fmt.Fprintf(os.Stderr, "  segcam --classifier downloads/classifier.onnx --largest\n")
	}

	flag.Parse()
	return f
}

func buildSettings(f cliFlags) (*config.Settings, error) {
	s, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", f.ConfigPath, err)
	}
	if f.Feature != "" {
		s.FeatureModelPath = f.Feature
	}
	if f.CameraIdx >= 0 {
		s.CameraIndex = f.CameraIdx
	}
	if f.InputSize > 0 {
		s.InputSize = f.InputSize
	}
	if f.Threshold >= 0 {
		s.SimilarityThreshold = float32(f.Threshold)
	}
	if f.Largest {
		s.LargestAreaOnly = true
	}
	if f.Sample > 0 {
		s.SampleInterval = f.Sample
	}
	_ = s.Validate()
	return s, nil
}

func run(flags cliFlags) error {
	logger, err := newLogger(flags.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	settings, err := buildSettings(flags)
	if err != nil {
		return err
	}

	if err := inference.Initialize(flags.ORTLib); err != nil {
		return err
	}
	defer inference.Shutdown()

	p := pipeline.New(pipeline.Config{
		FeatureModelPath:    settings.FeatureModelPath,
		ClassifierPath:      settings.ClassifierPath,
		InputSize:           settings.InputSize,
		SimilarityThreshold: settings.SimilarityThreshold,
		LargestAreaOnly:     settings.LargestAreaOnly,
	}, pipeline.Deps{
		Persist: func(path string) {
			settings.ClassifierPath = path
			if err := settings.Save(flags.ConfigPath); err != nil {
				logger.Warn("failed to persist settings", zap.Error(err))
			}
		},
	}, logger)
	defer p.Close()

	p.Initialize()
	if flags.Classifier != "" {
		p.LoadClassifier(flags.Classifier)
	}

	if flags.Watch {
		classifierPath := flags.Classifier
		if classifierPath == "" {
			classifierPath = settings.ClassifierPath
		}
		if classifierPath != "" {
			watcher, err := watchClassifier(classifierPath, p, logger)
			if err != nil {
				logger.Warn("classifier watch unavailable", zap.Error(err))
			} else {
				defer watcher.Close()
			}
		}
	}

	cam, err := camera.NewCapture(settings.CameraIndex)
	if err != nil {
		return err
	}
	defer cam.Close()
	logger.Info("camera opened",
		zap.Int("index", settings.CameraIndex),
		zap.Int("width", cam.Width()), zap.Int("height", cam.Height()))

	var window *ui.Window
	if flags.Preview {
		window = ui.NewWindow("segcam")
		defer window.Close()
	}

	// Track the latest update off the state stream; start processing as
	// soon as the models are ready.
	var mu sync.Mutex
	var overlay *mask.Overlay
	go func() {
		started := false
		for u := range p.Updates() {
			if u.Err != "" {
				logger.Warn("pipeline", zap.String("status", u.Status.String()), zap.String("err", u.Err))
			} else {
				logger.Debug("pipeline", zap.String("status", u.Status.String()))
			}
			if u.Status == pipeline.StatusModelsReady && !started {
				started = true
				p.SetRunning(true)
			}
			mu.Lock()
			overlay = u.Overlay
			mu.Unlock()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	frm := gocv.NewMat()
	defer frm.Close()

	logger.Info("running, press q to quit")

	frameNo := 0
	for {
		select {
		case <-sigChan:
			logger.Info("shutting down")
			return nil
		default:
		}

		if !cam.Read(&frm) || frm.Empty() {
			continue
		}

		// Only every Nth captured frame is offered to the pipeline; the
		// pipeline drops it again if a cycle is still in flight.
		frameNo++
		if frameNo%settings.SampleInterval == 0 {
			p.SubmitFrame(camera.ToRaw(&frm))
		}

		if window != nil {
			mu.Lock()
			ov := overlay
			mu.Unlock()
			window.Show(&frm, ov)
			key := window.WaitKey(1)
			if key == 'q' || key == 27 {
				logger.Info("quitting")
				return nil
			}
		}
	}
}

// watchClassifier hot-swaps the classifier whenever the file at path is
// rewritten, so a fresh trainctl download takes effect without a restart.
// The parent directory is watched because downloads land via rename.
func watchClassifier(path string, p *pipeline.Pipeline, logger *zap.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Info("classifier changed on disk, reloading", zap.String("path", path))
				p.LoadClassifier(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("classifier watch", zap.Error(err))
			}
		}
	}()
	return watcher, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
