package main

import (
	"fmt"
	"os"

	"github.com/tsawler/go-metal/checkpoints"
)

// modelprobe checks whether a downloaded classifier artifact can be imported
// layer by layer, which catches exporter changes (unsupported ops, missing
// weights) before the artifact is hot-swapped into a live pipeline.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: modelprobe <classifier.onnx>")
		fmt.Println("\nProbes a classifier artifact's layer graph.")
		os.Exit(1)
	}

	modelPath := os.Args[1]
	fmt.Printf("Probing ONNX model: %s\n", modelPath)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: file not found: %s\n", modelPath)
		os.Exit(1)
	}

	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(modelPath)
	if err != nil {
		fmt.Printf("\nImport failed:\n%v\n", err)
		fmt.Println("\nThe artifact likely uses operations outside the supported set")
		fmt.Println("(Conv, MatMul, Add, Relu, LeakyRelu, Sigmoid, Tanh, BatchNorm,")
		fmt.Println("Dropout, Softmax, Flatten). A logistic-regression export should")
		fmt.Println("only need MatMul, Add and Sigmoid.")
		os.Exit(1)
	}

	fmt.Println("\nImport OK.")
	fmt.Printf("  Layers: %d\n", len(checkpoint.ModelSpec.Layers))
	fmt.Printf("  Weights: %d tensors\n", len(checkpoint.Weights))

	fmt.Println("\nLayers:")
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}
