package core

import "context"

// CaptureProvider acquires the local audio/video devices. One attempt per call.
type CaptureProvider interface {
	Acquire(ctx context.Context) (MediaStream, error)
}
