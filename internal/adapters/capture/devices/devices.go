//go:build devices

// Package devices captures from the local camera and microphone. It needs
// cgo for the VP8 and Opus encoders, so it is only built with -tags devices.
package devices

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/duet/internal/core"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Provider struct {
	Width, Height int
	VideoBitRate  int
	AudioBitRate  int
}

func (p *Provider) Acquire(ctx context.Context) (core.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.CaptureError{Err: err}
	}
	selector, err := p.codecs()
	if err != nil {
		return nil, &core.CaptureError{Err: err}
	}

	s, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormat(frame.FormatI420)
			c.Width = prop.Int(p.width())
			c.Height = prop.Int(p.height())
		},
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: selector,
	})
	if err != nil {
		return nil, &core.CaptureError{Err: fmt.Errorf("get user media: %w", err)}
	}

	tracks := make([]core.Track, 0, len(s.GetTracks()))
	for _, t := range s.GetTracks() {
		tracks = append(tracks, &deviceTrack{src: t})
	}
	log.Info().Str("module", "capture.devices").Int("tracks", len(tracks)).Msg("devices acquired")
	return &stream{id: tracksStreamID(s), tracks: tracks}, nil
}

func (p *Provider) codecs() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 500_000
	if p.VideoBitRate > 0 {
		vpxParams.BitRate = p.VideoBitRate
	}
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}
	opusParams.BitRate = 32_000
	if p.AudioBitRate > 0 {
		opusParams.BitRate = p.AudioBitRate
	}
	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

func (p *Provider) width() int {
	if p.Width > 0 {
		return p.Width
	}
	return 640
}

func (p *Provider) height() int {
	if p.Height > 0 {
		return p.Height
	}
	return 480
}

func tracksStreamID(s mediadevices.MediaStream) string {
	for _, t := range s.GetTracks() {
		return t.StreamID()
	}
	return ""
}

type stream struct {
	id     string
	tracks []core.Track
}

func (s *stream) ID() string           { return s.id }
func (s *stream) Tracks() []core.Track { return s.tracks }

// deviceTrack releases the device when stopped.
type deviceTrack struct {
	src     mediadevices.Track
	stopped atomic.Bool
}

func (t *deviceTrack) ID() string                    { return t.src.ID() }
func (t *deviceTrack) Kind() webrtc.RTPCodecType     { return t.src.Kind() }
func (t *deviceTrack) TrackLocal() webrtc.TrackLocal { return t.src }
func (t *deviceTrack) Stopped() bool                 { return t.stopped.Load() }

func (t *deviceTrack) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		_ = t.src.Close()
	}
}
