package webrtc

import (
	"fmt"

	pion "github.com/pion/webrtc/v4"
)

const streamID = "deepcode"

// Tracks are the local media sources shared by every peer connection.
// Capture code feeds them with WriteSample; a track nobody writes to simply
// sends nothing.
type Tracks struct {
	Audio  *pion.TrackLocalStaticSample
	Camera *pion.TrackLocalStaticSample
	Screen *pion.TrackLocalStaticSample
}

// NewTracks creates Opus audio and VP8 camera and screen tracks.
func NewTracks() (*Tracks, error) {
	audio, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	camera, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("create camera track: %w", err)
	}

	// Same track id as the camera so the remote side keeps one video element.
	screen, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("create screen track: %w", err)
	}

	return &Tracks{Audio: audio, Camera: camera, Screen: screen}, nil
}

// video returns the outgoing video source for the share state.
func (t *Tracks) video(sharing bool) *pion.TrackLocalStaticSample {
	if sharing {
		return t.Screen
	}
	return t.Camera
}
