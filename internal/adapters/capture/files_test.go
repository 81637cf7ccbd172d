package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkeye/duet/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeIVF writes a minimal IVF file with the given fourcc and frames.
func writeIVF(t *testing.T, fourcc string, frames ...[]byte) string {
	t.Helper()
	b := make([]byte, 32)
	copy(b[0:4], "DKIF")
	binary.LittleEndian.PutUint16(b[4:], 0)
	binary.LittleEndian.PutUint16(b[6:], 32)
	copy(b[8:12], fourcc)
	binary.LittleEndian.PutUint16(b[12:], 64)
	binary.LittleEndian.PutUint16(b[14:], 48)
	binary.LittleEndian.PutUint32(b[16:], 30)
	binary.LittleEndian.PutUint32(b[20:], 1)
	binary.LittleEndian.PutUint32(b[24:], uint32(len(frames)))
	for i, f := range frames {
		h := make([]byte, 12)
		binary.LittleEndian.PutUint32(h[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(h[4:], uint64(i))
		b = append(b, h...)
		b = append(b, f...)
	}
	path := filepath.Join(t.TempDir(), "video.ivf")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestFilesVideoOnly(t *testing.T) {
	path := writeIVF(t, "VP80", []byte{0x10, 0x02, 0x00}, []byte{0x11, 0x02, 0x00})
	f := &Files{VideoPath: path}

	s, err := f.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Tracks(), 1)

	tr := s.Tracks()[0]
	assert.Equal(t, webrtc.RTPCodecTypeVideo, tr.Kind())
	lt, ok := tr.(core.LocalTrack)
	require.True(t, ok)
	assert.Equal(t, s.ID(), lt.TrackLocal().StreamID())
	assert.Equal(t, 1, core.LiveTracks(s))

	tr.Stop()
	tr.Stop()
	assert.True(t, tr.Stopped())
	assert.Zero(t, core.LiveTracks(s))
}

func TestFilesStreamsAreDistinct(t *testing.T) {
	path := writeIVF(t, "VP80", []byte{0x10})
	f := &Files{VideoPath: path}

	a, err := f.Acquire(context.Background())
	require.NoError(t, err)
	b, err := f.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	for _, tr := range append(a.Tracks(), b.Tracks()...) {
		tr.Stop()
	}
}

func TestFilesErrors(t *testing.T) {
	tests := []struct {
		name  string
		files Files
		is    error
	}{
		{name: "no source", files: Files{}, is: ErrNoSource},
		{name: "missing video", files: Files{VideoPath: filepath.Join(t.TempDir(), "nope.ivf")}, is: os.ErrNotExist},
		{name: "wrong codec", files: Files{VideoPath: writeIVF(t, "H264", []byte{0x00})}},
		{
			name:  "missing audio releases video",
			files: Files{VideoPath: writeIVF(t, "VP80", []byte{0x10}), AudioPath: filepath.Join(t.TempDir(), "nope.ogg")},
			is:    os.ErrNotExist,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.files.Acquire(context.Background())
			var ce *core.CaptureError
			require.True(t, errors.As(err, &ce), "got %v", err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestFilesCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Files{VideoPath: "x.ivf"}).Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
