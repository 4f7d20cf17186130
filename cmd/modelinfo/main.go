package main

import (
	"flag"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// modelinfo dumps a model's inputs, outputs and metadata, and optionally
// checks a candidate classifier against the two-output contract the pipeline
// expects (integer labels plus probability pairs).
func main() {
	classifier := flag.Bool("classifier", false, "validate the classifier I/O contract")
	ortlib := flag.String("ortlib", "", "path to the ONNX Runtime shared library")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo [options] <model.onnx>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	modelPath := flag.Arg(0)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: file not found: %s\n", modelPath)
		os.Exit(1)
	}

	if *ortlib != "" {
		ort.SetSharedLibraryPath(*ortlib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		fmt.Printf("Failed to initialize ONNX Runtime: %v\n", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		fmt.Printf("Failed to get model info: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model: %s\n", modelPath)
	fmt.Printf("\nInputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Printf("  %s: shape=%v\n", info.Name, info.Dimensions)
	}
	fmt.Printf("\nOutputs (%d):\n", len(outputs))
	for _, info := range outputs {
		fmt.Printf("  %s: shape=%v\n", info.Name, info.Dimensions)
	}

	printMetadata(modelPath)

	if *classifier {
		if len(inputs) != 1 || len(outputs) != 2 {
			fmt.Printf("\nFAILED: classifier contract wants 1 input and 2 outputs, model has %d/%d\n",
				len(inputs), len(outputs))
			os.Exit(1)
		}
		fmt.Println("\nClassifier contract: OK (1 input, 2 outputs)")
	}
}

func printMetadata(modelPath string) {
	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		fmt.Printf("\nMetadata: (could not read: %v)\n", err)
		return
	}
	defer metadata.Destroy()

	fmt.Println("\nMetadata:")
	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Printf("  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Printf("  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Printf("  Domain: %s\n", domain)
	}
	if desc, err := metadata.GetDescription(); err == nil {
		fmt.Printf("  Description: %s\n", desc)
	}
}
