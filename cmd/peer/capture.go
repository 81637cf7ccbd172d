//go:build !devices

package main

import (
	"fmt"

	"github.com/dkeye/duet/internal/adapters/capture"
	"github.com/dkeye/duet/internal/config"
	"github.com/dkeye/duet/internal/core"
)

func newCapture(cfg *config.Config) (core.CaptureProvider, error) {
	switch cfg.Capture.Mode {
	case "", "files":
		return &capture.Files{VideoPath: cfg.Capture.VideoFile, AudioPath: cfg.Capture.AudioFile}, nil
	case "devices":
		return nil, fmt.Errorf("capture mode %q needs a build with -tags devices", cfg.Capture.Mode)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Capture.Mode)
	}
}
