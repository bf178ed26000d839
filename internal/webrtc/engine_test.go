package webrtc

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationRelayPolicy(t *testing.T) {
	cfg := &config.Config{STUNServers: []string{"stun:stun.example:3478"}}

	conf := Configuration(cfg, true)
	require.Len(t, conf.ICEServers, 1)
	assert.Equal(t, pion.ICETransportPolicyAll, conf.ICETransportPolicy, "no TURN means no relay-only")

	cfg.TURNServer = "turn:turn.example"
	cfg.TURNUser, cfg.TURNPass = "u", "p"

	conf = Configuration(cfg, false)
	require.Len(t, conf.ICEServers, 2)
	assert.Equal(t, "u", conf.ICEServers[1].Username)
	assert.Equal(t, pion.ICETransportPolicyAll, conf.ICETransportPolicy)

	conf = Configuration(cfg, true)
	assert.Equal(t, pion.ICETransportPolicyRelay, conf.ICETransportPolicy)

	assert.Empty(t, Configuration(&config.Config{}, false).ICEServers)

	cfg.ForceRelay = true
	conf = Configuration(cfg, false)
	assert.Equal(t, pion.ICETransportPolicyRelay, conf.ICETransportPolicy)
}

func TestRelayHint(t *testing.T) {
	up := net.FlagUp
	assert.False(t, relayHint([]netInterface{
		{name: "lo", flags: up | net.FlagLoopback, ips: []net.IP{net.ParseIP("127.0.0.1")}},
		{name: "eth0", flags: up, ips: []net.IP{net.ParseIP("192.168.1.20")}},
	}))
	assert.True(t, relayHint([]netInterface{{name: "wg0", flags: up}}))
	assert.True(t, relayHint([]netInterface{{name: "eth0", flags: up, ips: []net.IP{net.ParseIP("100.96.1.2")}}}))
	assert.False(t, relayHint([]netInterface{{name: "tun0"}}), "interfaces that are down are ignored")
}

func TestControlMessageCodec(t *testing.T) {
	data, err := encodeControl(ControlHello, ParticipantInfo{DisplayName: "Alice", Client: "cli", Version: "1.2.0"})
	require.NoError(t, err)

	msg, err := decodeControl(data)
	require.NoError(t, err)
	assert.Equal(t, ControlHello, msg.Type)

	var info ParticipantInfo
	require.NoError(t, msg.DecodePayload(&info))
	assert.Equal(t, "Alice", info.DisplayName)

	_, err = decodeControl([]byte{0xc1})
	assert.Error(t, err)
}

func TestDecodeSDPChecksType(t *testing.T) {
	raw := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)

	desc, err := decodeSDP(raw, pion.SDPTypeAnswer)
	require.NoError(t, err)
	assert.Equal(t, "v=0", desc.SDP)

	_, err = decodeSDP(raw, pion.SDPTypeOffer)
	assert.ErrorIs(t, err, ErrUnexpectedSDP)
}

func TestTransportStateMapping(t *testing.T) {
	assert.Equal(t, negotiation.TransportConnected, transportState(pion.PeerConnectionStateConnected))
	assert.Equal(t, negotiation.TransportFailed, transportState(pion.PeerConnectionStateFailed))
	assert.Equal(t, negotiation.TransportClosed, transportState(pion.PeerConnectionStateClosed))
	assert.Equal(t, negotiation.TransportNew, transportState(pion.PeerConnectionStateNew))
}

// Two engines negotiate over loopback with host candidates only.
func TestEnginesNegotiateOffer(t *testing.T) {
	cfg := &config.Config{}
	tracks, err := NewTracks()
	require.NoError(t, err)

	a, err := NewEngine(cfg, tracks, ParticipantInfo{DisplayName: "A"}, Observer{})
	require.NoError(t, err)
	b, err := NewEngine(cfg, tracks, ParticipantInfo{DisplayName: "B"}, Observer{})
	require.NoError(t, err)

	pa, err := a.NewPeer("b", negotiation.PeerCallbacks{})
	require.NoError(t, err)
	defer pa.Close()
	pb, err := b.NewPeer("a", negotiation.PeerCallbacks{})
	require.NoError(t, err)
	defer pb.Close()

	err = pb.AddICECandidate(json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"}`))
	assert.ErrorIs(t, err, negotiation.ErrNoRemoteDescription)

	offer, err := pa.CreateOffer()
	require.NoError(t, err)
	answer, err := pb.AcceptOffer(offer)
	require.NoError(t, err)
	require.NoError(t, pa.AcceptAnswer(answer))

	require.NoError(t, pa.SetScreenShare(true))
	require.NoError(t, pa.SetScreenShare(false))

	_, err = pb.AcceptOffer(answer)
	assert.ErrorIs(t, err, ErrUnexpectedSDP)
}
