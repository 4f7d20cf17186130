package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dvsk/patchseg/internal/config"
	"github.com/dvsk/patchseg/internal/training"
)

// trainctl drives a training round against the remote service: upload a set
// of RGBA-labeled images, wait for the classifier to be trained, and download
// the artifact where segcam can hot-swap it in.
func main() {
	configPath := flag.String("config", "segcam.json", "Settings file (for service URL and token)")
	name := flag.String("name", "", "Dataset name (default: generated)")
	out := flag.String("out", "classifier.onnx", "Where to write the trained classifier")
	interval := flag.Duration("poll", 10*time.Second, "Status poll interval")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: trainctl [options] <image.png>...")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if *name == "" {
		*name = "dataset-" + uuid.NewString()[:8]
	}

	if err := run(*configPath, *name, *out, *interval, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, name, out string, interval time.Duration, paths []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if settings.TrainingURL == "" {
		return fmt.Errorf("no training_url configured in %s", configPath)
	}

	images := make([]training.LabeledImage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		images = append(images, training.LabeledImage{Name: filepath.Base(path), Data: data})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := training.NewClient(settings.TrainingURL, settings.TrainingToken)

	ds, err := client.CreateDataset(ctx, name, images)
	if err != nil {
		return err
	}
	fmt.Printf("Dataset %s created with %d images, waiting for training...\n", ds.ID, len(images))

	ds, err = client.AwaitReady(ctx, ds.ID, interval)
	if err != nil {
		return err
	}

	if err := client.DownloadClassifier(ctx, ds, out); err != nil {
		return err
	}
	fmt.Printf("Classifier written to %s\n", out)
	fmt.Printf("Load it with: segcam --classifier %s\n", out)
	return nil
}
