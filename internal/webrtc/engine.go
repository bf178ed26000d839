// Package webrtc is the pion-backed media engine: one PeerConnection per
// remote participant carrying local audio and video plus a control channel.
package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrUnexpectedSDP = errors.New("unexpected session description type")

// Observer receives media-level notifications. Any field may be nil.
type Observer struct {
	OnParticipant func(peerID string, info ParticipantInfo)
	OnRemoteTrack func(peerID string, kind string)
}

// Engine creates PeerConnections sharing one set of local tracks.
type Engine struct {
	api      *pion.API
	conf     pion.Configuration
	tracks   *Tracks
	self     ParticipantInfo
	observer Observer
}

// NewEngine builds an engine with the default codecs and the ICE servers
// from cfg.
func NewEngine(cfg *config.Config, tracks *Tracks, self ParticipantInfo, observer Observer) (*Engine, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return &Engine{
		api:      pion.NewAPI(pion.WithMediaEngine(m)),
		conf:     Configuration(cfg, ShouldForceRelay()),
		tracks:   tracks,
		self:     self,
		observer: observer,
	}, nil
}

// Configuration returns the ICE setup for cfg. Relay-only transport is used
// when TURN is configured and either forced or hinted by the network.
func Configuration(cfg *config.Config, relayHint bool) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || relayHint) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewPeer creates the media session toward peerID.
func (e *Engine) NewPeer(peerID string, cb negotiation.PeerCallbacks) (negotiation.Peer, error) {
	pc, err := e.api.NewPeerConnection(e.conf)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &peer{id: peerID, pc: pc, tracks: e.tracks}

	audio, err := pc.AddTrack(e.tracks.Audio)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	p.video, err = pc.AddTrack(e.tracks.Camera)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video track: %w", err)
	}
	go drainRTCP(audio)
	go drainRTCP(p.video)

	if err := e.openControl(p); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil || cb.OnICECandidate == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal candidate")
			return
		}
		cb.OnICECandidate(data)
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		if cb.OnStateChange != nil {
			cb.OnStateChange(transportState(state))
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		l := log.With().Str("peer", peerID).Str("kind", track.Kind().String()).Logger()
		l.Debug().Str("codec", track.Codec().MimeType).Msg("Received remote track")

		if track.Kind() == pion.RTPCodecTypeVideo {
			// Ask for a keyframe so the first frames decode.
			err := pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				l.Debug().Err(err).Msg("PLI not sent")
			}
		}

		if e.observer.OnRemoteTrack != nil {
			e.observer.OnRemoteTrack(peerID, track.Kind().String())
		}
		go drainTrack(track)
	})

	return p, nil
}

// openControl creates the control channel on both sides with a fixed id, so
// neither role has to wait for the other to announce it.
func (e *Engine) openControl(p *peer) error {
	negotiated := true
	ordered := true
	id := uint16(0)

	dc, err := p.pc.CreateDataChannel(ControlLabel, &pion.DataChannelInit{
		Negotiated: &negotiated,
		Ordered:    &ordered,
		ID:         &id,
	})
	if err != nil {
		return fmt.Errorf("create control channel: %w", err)
	}

	dc.OnOpen(func() {
		data, err := encodeControl(ControlHello, e.self)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode participant info")
			return
		}
		if err := dc.Send(data); err != nil {
			log.Debug().Err(err).Str("peer", p.id).Msg("Participant info not sent")
		}
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		ctrl, err := decodeControl(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("peer", p.id).Msg("Malformed control message")
			return
		}

		switch ctrl.Type {
		case ControlHello:
			var info ParticipantInfo
			if err := ctrl.DecodePayload(&info); err != nil {
				log.Warn().Err(err).Str("peer", p.id).Msg("Malformed participant info")
				return
			}
			log.Debug().Str("peer", p.id).Str("client", info.Client).Str("version", info.Version).Msg("Participant info")
			if e.observer.OnParticipant != nil {
				e.observer.OnParticipant(p.id, info)
			}
		default:
			log.Debug().Str("peer", p.id).Str("type", ctrl.Type).Msg("Ignoring control message")
		}
	})

	p.control = dc
	return nil
}

type peer struct {
	id      string
	pc      *pion.PeerConnection
	video   *pion.RTPSender
	tracks  *Tracks
	control *pion.DataChannel

	mu sync.Mutex
}

func (p *peer) CreateOffer() (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(p.pc.LocalDescription())
}

func (p *peer) AcceptOffer(raw json.RawMessage) (json.RawMessage, error) {
	offer, err := decodeSDP(raw, pion.SDPTypeOffer)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(p.pc.LocalDescription())
}

func (p *peer) AcceptAnswer(raw json.RawMessage) error {
	answer, err := decodeSDP(raw, pion.SDPTypeAnswer)
	if err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (p *peer) AddICECandidate(raw json.RawMessage) error {
	if p.pc.RemoteDescription() == nil {
		return fmt.Errorf("add ICE candidate: %w", negotiation.ErrNoRemoteDescription)
	}

	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}
	if err := p.pc.AddICECandidate(ice); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// SetScreenShare swaps the track behind the video sender; the SDP is
// unchanged so no renegotiation happens.
func (p *peer) SetScreenShare(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.video.ReplaceTrack(p.tracks.video(on)); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}
	return nil
}

func (p *peer) Close() error {
	return p.pc.Close()
}

func decodeSDP(raw json.RawMessage, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("parse session description: %w", err)
	}
	if desc.Type != want {
		return desc, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedSDP, desc.Type, want)
	}
	return desc, nil
}

func transportState(s pion.PeerConnectionState) negotiation.TransportState {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return negotiation.TransportConnecting
	case pion.PeerConnectionStateConnected:
		return negotiation.TransportConnected
	case pion.PeerConnectionStateDisconnected:
		return negotiation.TransportDisconnected
	case pion.PeerConnectionStateFailed:
		return negotiation.TransportFailed
	case pion.PeerConnectionStateClosed:
		return negotiation.TransportClosed
	}
	return negotiation.TransportNew
}

// drainRTCP keeps the sender's RTCP reader moving so interceptors run.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// drainTrack consumes remote RTP until the track ends. Terminal clients do
// not render media.
func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("track", track.ID()).Msg("Remote track ended")
			}
			return
		}
	}
}
