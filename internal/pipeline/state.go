package pipeline

import "github.com/dvsk/patchseg/internal/mask"

// Status is the orchestrator's observable lifecycle state.
type Status int32

const (
	StatusIdle Status = iota
	StatusLoadingModels
	StatusModelsReady
	StatusRunning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingModels:
		return "loading-models"
	case StatusModelsReady:
		return "models-ready"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is one snapshot delivered to the caller: current status, the most
// recent overlay (nil until a cycle completes), and the last error message
// (empty after a clean cycle).
type Update struct {
	Status  Status
	Overlay *mask.Overlay
	Err     string
}
