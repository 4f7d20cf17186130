package mask

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dvsk/patchseg/internal/encoder"
)

// FilterLargestRegion keeps only the spatially largest 8-connected foreground
// region in scores, zeroing every patch outside it. Scores are binarized at
// threshold for component labeling only; retained scores keep their original
// values. A grid with zero or one foreground component is left unchanged.
// Ties on maximum area resolve to the first component in left-to-right,
// top-to-bottom scan order, which is the order OpenCV assigns labels.
func FilterLargestRegion(scores []float32, grid encoder.Grid, threshold float32) error {
	if len(scores) != grid.NumPatches() {
		return fmt.Errorf("%w: %d scores for %dx%d grid",
			encoder.ErrInvalidGeometry, len(scores), grid.HPatches, grid.WPatches)
	}

	bin := make([]byte, len(scores))
	for i, s := range scores {
		if s > threshold {
			bin[i] = 255
		}
	}

	binary, err := gocv.NewMatFromBytes(grid.HPatches, grid.WPatches, gocv.MatTypeCV8UC1, bin)
	if err != nil {
		return fmt.Errorf("%w: %v", encoder.ErrInvalidGeometry, err)
	}
	defer binary.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	// Label 0 is background.
	numLabels := gocv.ConnectedComponentsWithStats(binary, &labels, &stats, &centroids)
	if numLabels <= 2 {
		return nil
	}

	best := 1
	bestArea := stats.GetIntAt(1, int(gocv.CCStatArea))
	for label := 2; label < numLabels; label++ {
		if area := stats.GetIntAt(label, int(gocv.CCStatArea)); area > bestArea {
			best = label
			bestArea = area
		}
	}

	for y := 0; y < grid.HPatches; y++ {
		for x := 0; x < grid.WPatches; x++ {
			if int(labels.GetIntAt(y, x)) != best {
				scores[y*grid.WPatches+x] = 0
			}
		}
	}
	return nil
}
