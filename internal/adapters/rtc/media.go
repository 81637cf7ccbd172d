package rtc

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Media is a core.MediaConnection over pion. Remote tracks are grouped by
// their stream id; OnStream fires once per stream, on its first track.
type Media struct {
	*Conn
	h core.MediaHandlers

	mu      sync.Mutex
	streams map[string]*RemoteStream
}

func NewMedia(api *webrtc.API, cfg webrtc.Configuration, id domain.ConnectionID, remote domain.PeerID, h core.MediaHandlers) (*Media, error) {
	c, err := newConn(api, cfg, id, remote, domain.KindMedia)
	if err != nil {
		return nil, err
	}
	m := &Media{Conn: c, h: h, streams: make(map[string]*RemoteStream)}
	c.pc.OnTrack(m.onTrack)
	c.setFailed(func(err error) {
		if m.h.OnError != nil {
			m.h.OnError(err)
		}
	})
	c.OnClosed(func() {
		if m.h.OnClose != nil {
			m.h.OnClose()
		}
	})
	c.start()
	return m, nil
}

// AddLocal attaches the captured tracks of s.
func (m *Media) AddLocal(s core.MediaStream) error {
	if s == nil {
		return nil
	}
	for _, t := range s.Tracks() {
		lt, ok := t.(core.LocalTrack)
		if !ok {
			continue
		}
		sender, err := m.pc.AddTrack(lt.TrackLocal())
		if err != nil {
			return err
		}
		go drainRTCP(sender)
	}
	return nil
}

// ReceiveMissing negotiates every kind no local track covers as
// receive-only, so the remote side can still send it. Offering side only.
func (m *Media) ReceiveMissing() error {
	have := map[webrtc.RTPCodecType]bool{}
	for _, tr := range m.pc.GetTransceivers() {
		have[tr.Kind()] = true
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if have[kind] {
			continue
		}
		if _, err := m.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return err
		}
	}
	return nil
}

// drainRTCP reads incoming RTCP so the interceptors see it.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (m *Media) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	m.logger.Info().
		Str("kind", track.Kind().String()).
		Str("track_id", track.ID()).
		Str("stream_id", track.StreamID()).
		Msg("OnTrack received")

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		err := m.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
		if err != nil {
			m.logger.Warn().Err(err).Msg("keyframe request failed")
		}
	}

	rt := &RemoteTrack{track: track, receiver: receiver}
	m.mu.Lock()
	s, seen := m.streams[track.StreamID()]
	if !seen {
		s = NewRemoteStream(track.StreamID())
		m.streams[track.StreamID()] = s
	}
	s.add(rt)
	m.mu.Unlock()

	if !seen && m.h.OnStream != nil {
		m.h.OnStream(s)
	}
}

// RemoteStream collects the remote tracks sharing one stream id. Tracks
// arriving after the stream was emitted are appended to it.
type RemoteStream struct {
	id     string
	mu     sync.Mutex
	tracks []core.Track
}

func NewRemoteStream(id string) *RemoteStream { return &RemoteStream{id: id} }

func (s *RemoteStream) ID() string { return s.id }

func (s *RemoteStream) Tracks() []core.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *RemoteStream) add(t core.Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
}

type RemoteTrack struct {
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
	stopped  atomic.Bool
}

func (t *RemoteTrack) ID() string                { return t.track.ID() }
func (t *RemoteTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }
func (t *RemoteTrack) MimeType() string          { return t.track.Codec().MimeType }
func (t *RemoteTrack) Stopped() bool             { return t.stopped.Load() }

func (t *RemoteTrack) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	_ = t.receiver.Stop()
}

// ReadRTP returns the next packet of the track. It fails once the track is stopped.
func (t *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	p, _, err := t.track.ReadRTP()
	return p, err
}
