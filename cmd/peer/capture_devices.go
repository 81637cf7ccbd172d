//go:build devices

package main

import (
	"fmt"

	"github.com/dkeye/duet/internal/adapters/capture"
	"github.com/dkeye/duet/internal/adapters/capture/devices"
	"github.com/dkeye/duet/internal/config"
	"github.com/dkeye/duet/internal/core"
)

func newCapture(cfg *config.Config) (core.CaptureProvider, error) {
	switch cfg.Capture.Mode {
	case "files":
		return &capture.Files{VideoPath: cfg.Capture.VideoFile, AudioPath: cfg.Capture.AudioFile}, nil
	case "", "devices":
		return &devices.Provider{}, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Capture.Mode)
	}
}
