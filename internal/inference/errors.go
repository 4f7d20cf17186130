package inference

import "errors"

// Failure categories shared by the model engines. Engines wrap these so
// callers can classify a failed cycle with errors.Is.
var (
	// ErrSessionNotReady means inference was attempted before the session
	// was loaded, or after it was destroyed.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrInference wraps any runtime failure from the underlying model.
	ErrInference = errors.New("inference failed")

	// ErrModelLoad wraps load failures for either model file.
	ErrModelLoad = errors.New("model load failed")
)
