// Package transport implements the transport adapter: a thin contract
// over pion/webrtc yielding a reliable ordered data channel with open/close/
// failure events, built from one STUN server, a registered interceptor
// chain and a single webrtc.API instance, carrying the netplay session
// protocol instead of audio/video tracks.
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/junowen-net/core/internal/errs"
)

// Protocol is the fixed data-channel protocol tag negotiated by every
// connection. WaitForOpenDataChannel fails the session if the remote
// negotiated anything else.
const Protocol = "JUNOWEN/0.5"

const defaultSTUNServer = "stun:stun.l.google.com:19302"

// DisconnectedTimeout matches the connection's 20-minute idle budget. pion has
// no single "disconnected timeout" knob; callers that need to enforce the
// budget do so by starting their own timer from the Disconnected state
// transition observed via State().
const DisconnectedTimeout = 20 * time.Minute

// Connection wraps one pion PeerConnection. The connection owns its data
// channel: closing the connection closes the channel, and Close must be
// called explicitly because the underlying library does not close on drop.
type Connection struct {
	stunServer string

	pc *webrtc.PeerConnection

	mu      sync.Mutex
	channel *DataChannel
	state   webrtc.PeerConnectionState
}

// NewConnection builds a PeerConnection configured with a single public STUN
// server: a MediaEngine + default interceptor registry fed into a dedicated
// webrtc.API, even though no RTP interceptor ever fires over a pure data
// channel.
func NewConnection(stunServer string) (*Connection, error) {
	if stunServer == "" {
		stunServer = defaultSTUNServer
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("%w: register codecs: %v", errs.ErrTransportFailed, err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("%w: register interceptors: %v", errs.ErrTransportFailed, err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{stunServer}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create peer connection: %v", errs.ErrTransportFailed, err)
	}

	c := &Connection{stunServer: stunServer, pc: pc}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.mu.Lock()
		c.state = state
		ch := c.channel
		c.mu.Unlock()
		log.Printf("transport: PC state -> %s", state)
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateDisconnected {
			if ch != nil {
				ch.noteConnectionDown()
			}
		}
	})
	return c, nil
}

// State returns the most recently observed PeerConnectionState so callers
// above the transport (the disconnect indicator) can report why a
// session ended rather than only that it did.
func (c *Connection) State() webrtc.PeerConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// gatherICE blocks until ICE gathering completes and returns the connection's
// current local description SDP.
func gatherICE(pc *webrtc.PeerConnection) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	<-gatherComplete
	ld := pc.LocalDescription()
	if ld == nil {
		return "", fmt.Errorf("%w: no local description after gathering", errs.ErrTransportFailed)
	}
	return ld.SDP, nil
}

// StartAsOfferer creates one reliable ordered data channel carrying Protocol,
// generates a local offer, gathers ICE to completion, and returns the local
// SDP.
func (c *Connection) StartAsOfferer() (string, error) {
	ordered := true
	dc, err := c.pc.CreateDataChannel("battle", &webrtc.DataChannelInit{
		Ordered:  &ordered,
		Protocol: stringPtr(Protocol),
	})
	if err != nil {
		return "", fmt.Errorf("%w: create data channel: %v", errs.ErrTransportFailed, err)
	}
	c.attachChannel(dc)

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create offer: %v", errs.ErrTransportFailed, err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("%w: set local description: %v", errs.ErrTransportFailed, err)
	}
	return gatherICE(c.pc)
}

// StartAsAnswerer sets the remote offer, creates an answer, gathers ICE to
// completion, and returns the local SDP. The remote-created data channel
// arrives asynchronously via OnDataChannel.
func (c *Connection) StartAsAnswerer(offerSDP string) (string, error) {
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.attachChannel(dc)
	})

	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: offerSDP,
	}); err != nil {
		return "", fmt.Errorf("%w: set remote description: %v", errs.ErrTransportFailed, err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create answer: %v", errs.ErrTransportFailed, err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("%w: set local description: %v", errs.ErrTransportFailed, err)
	}
	return gatherICE(c.pc)
}

// SetAnswer completes offerer-side negotiation.
func (c *Connection) SetAnswer(answerSDP string) error {
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: answerSDP,
	}); err != nil {
		return fmt.Errorf("%w: set remote description: %v", errs.ErrTransportFailed, err)
	}
	return nil
}

// attachChannel installs open/close/message callbacks on a freshly created or
// freshly received data channel and publishes it on c.channel.
func (c *Connection) attachChannel(dc *webrtc.DataChannel) {
	ch := newDataChannel(dc)
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	dc.OnOpen(func() {
		ch.noteOpen()
	})
	dc.OnClose(func() {
		ch.noteClosed()
	})
	dc.OnError(func(err error) {
		log.Printf("transport: data channel error: %v", err)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		ch.deliver(msg.Data)
	})
}

// WaitForOpenDataChannel resolves once either the channel opens, the
// connection reports Failed, or timeout elapses. On open it verifies the
// negotiated protocol string equals Protocol and fails otherwise.
func (c *Connection) WaitForOpenDataChannel(ctx context.Context, timeout time.Duration) (*DataChannel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		c.mu.Lock()
		ch := c.channel
		state := c.state
		c.mu.Unlock()

		if state == webrtc.PeerConnectionStateFailed {
			return nil, fmt.Errorf("%w: peer connection failed while waiting for data channel", errs.ErrTransportFailed)
		}
		if ch != nil {
			select {
			case <-ch.openedCh:
				if ch.Protocol() != Protocol {
					_ = ch.Close()
					return nil, fmt.Errorf("%w: negotiated protocol %q != %q", errs.ErrTransportFailed, ch.Protocol(), Protocol)
				}
				return ch, nil
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: timed out waiting for data channel to open", errs.ErrTransportFailed)
			default:
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: timed out waiting for data channel to open", errs.ErrTransportFailed)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close explicitly closes the peer connection, which also closes the
// owned data channel. The underlying library does not close on drop.
func (c *Connection) Close() error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	return c.pc.Close()
}

func stringPtr(s string) *string { return &s }
