package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dkeye/duet/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
)

const oggPageDuration = 20 * time.Millisecond

var ErrNoSource = errors.New("no capture source configured")

// Files plays a VP8 IVF file and an Opus OGG file in a loop, standing in
// for camera and microphone. Either path may be empty, not both.
type Files struct {
	VideoPath string
	AudioPath string
}

func (f *Files) Acquire(ctx context.Context) (core.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.CaptureError{Err: err}
	}
	if f.VideoPath == "" && f.AudioPath == "" {
		return nil, &core.CaptureError{Err: ErrNoSource}
	}

	streamID := "duet-" + uuid.NewString()
	var tracks []core.Track
	fail := func(err error) (core.MediaStream, error) {
		for _, t := range tracks {
			t.Stop()
		}
		return nil, &core.CaptureError{Err: err}
	}

	if f.VideoPath != "" {
		t, err := openVideo(f.VideoPath, streamID)
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, t)
	}
	if f.AudioPath != "" {
		t, err := openAudio(f.AudioPath, streamID)
		if err != nil {
			return fail(err)
		}
		tracks = append(tracks, t)
	}

	log.Info().
		Str("module", "capture").
		Str("stream_id", streamID).
		Str("video", f.VideoPath).
		Str("audio", f.AudioPath).
		Msg("file capture acquired")
	return NewStream(streamID, tracks...), nil
}

func openVideo(path, streamID string) (*sampleTrack, error) {
	file, reader, header, err := readIVF(path)
	if err != nil {
		return nil, err
	}
	if header.FourCC != "VP80" {
		_ = file.Close()
		return nil, fmt.Errorf("%s: unsupported fourcc %q", path, header.FourCC)
	}
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	t := newSampleTrack(local)
	frame := time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	if frame <= 0 {
		frame = time.Second / 30
	}
	go t.playVideo(path, file, reader, frame)
	return t, nil
}

func readIVF(path string) (*os.File, *ivfreader.IVFReader, *ivfreader.IVFFileHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, reader, header, nil
}

func (t *sampleTrack) playVideo(path string, file *os.File, reader *ivfreader.IVFReader, frame time.Duration) {
	defer close(t.done)
	defer func() { _ = file.Close() }()

	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
		data, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			_ = file.Close()
			if file, reader, _, err = readIVF(path); err != nil {
				log.Error().Err(err).Str("module", "capture").Msg("video rewind failed")
				return
			}
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "capture").Msg("video frame")
			return
		}
		if err := t.local.WriteSample(media.Sample{Data: data, Duration: frame}); err != nil {
			log.Debug().Err(err).Str("module", "capture").Msg("video write")
		}
	}
}

func openAudio(path, streamID string) (*sampleTrack, error) {
	file, reader, err := readOGG(path)
	if err != nil {
		return nil, err
	}
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	t := newSampleTrack(local)
	go t.playAudio(path, file, reader)
	return t, nil
}

func readOGG(path string) (*os.File, *oggreader.OggReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	reader, _, err := oggreader.NewWith(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, reader, nil
}

func (t *sampleTrack) playAudio(path string, file *os.File, reader *oggreader.OggReader) {
	defer close(t.done)
	defer func() { _ = file.Close() }()

	var lastGranule uint64
	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			_ = file.Close()
			if file, reader, err = readOGG(path); err != nil {
				log.Error().Err(err).Str("module", "capture").Msg("audio rewind failed")
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "capture").Msg("audio page")
			return
		}
		// Opus granule positions count 48kHz samples.
		count := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(count) * time.Second / 48000
		if duration <= 0 {
			duration = oggPageDuration
		}
		if err := t.local.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			log.Debug().Err(err).Str("module", "capture").Msg("audio write")
		}
	}
}
