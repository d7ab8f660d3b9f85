package session

import (
	"fmt"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/transport"
)

// SpectatorSession is the watcher-side driver for C7: it only ever receives,
// exposing one decoded SpectatorMessage at a time to the state machine.
type SpectatorSession struct {
	ch *transport.DataChannel
}

// NewSpectatorSession wraps an already-open data channel.
func NewSpectatorSession(ch *transport.DataChannel) *SpectatorSession {
	return &SpectatorSession{ch: ch}
}

// Recv blocks for the next message from the host. Returns
// errs.ErrSessionDisconnected once the channel closes.
func (s *SpectatorSession) Recv() (SpectatorMessage, error) {
	data, ok := s.ch.Recv()
	if !ok {
		return SpectatorMessage{}, fmt.Errorf("%w", errs.ErrSessionDisconnected)
	}
	return DecodeSpectator(data)
}

// Close releases the underlying data channel.
func (s *SpectatorSession) Close() error { return s.ch.Close() }

// SpectatorSendSide is the host-side send half of a spectator session, used
// by the fan-out list to push the snapshot and ongoing stream to one
// watcher.
type SpectatorSendSide struct {
	ch *transport.DataChannel
}

// NewSpectatorSendSide wraps an already-open data channel for sending.
func NewSpectatorSendSide(ch *transport.DataChannel) *SpectatorSendSide {
	return &SpectatorSendSide{ch: ch}
}

func (s *SpectatorSendSide) send(m SpectatorMessage) error {
	b, err := EncodeSpectator(m)
	if err != nil {
		return err
	}
	return s.ch.Send(b)
}

// SendInitSpectator pushes the selection snapshot to this watcher.
func (s *SpectatorSendSide) SendInitSpectator(init *SpectatorInitial) error {
	return s.send(SpectatorMessage{Kind: SpectatorKindInitSpectator, InitSpectator: init})
}

// SendInitRound pushes the current round's seeds to this watcher.
func (s *SpectatorSendSide) SendInitRound(round *RoundInitial) error {
	return s.send(SpectatorMessage{Kind: SpectatorKindInitRound, RoundInitial: round})
}

// SendInputs pushes one frame's input pair to this watcher.
func (s *SpectatorSendSide) SendInputs(p1, p2 uint16) error {
	return s.send(SpectatorMessage{Kind: SpectatorKindInputs, P1: p1, P2: p2})
}

// Close releases the underlying data channel.
func (s *SpectatorSendSide) Close() error { return s.ch.Close() }
