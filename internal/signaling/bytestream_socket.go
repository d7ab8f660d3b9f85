package signaling

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/junowen-net/core/internal/errs"
)

// byteStreamMsg is the newline-delimited JSON envelope exchanged over a
// ByteStreamSocket's duplex byte stream, in the same bufio.Reader.ReadBytes('\n')
// newline-delimited JSON framing style a duplex byte-stream protocol uses for its request/response
// bodies.
type byteStreamMsg struct {
	Kind string `json:"kind"` // "offer" | "answer"
	SDP  string `json:"sdp,omitempty"`
}

// ByteStreamSocket drives signaling over a duplex byte stream such as a local
// named pipe or, in the clipboard-driven UI, a human relaying codes back and
// forth. Used by clipboard-driven flows.
type ByteStreamSocket struct {
	w  io.Writer
	r  *bufio.Reader
	mu sync.Mutex
}

// NewByteStreamSocket wraps an already-connected duplex stream.
func NewByteStreamSocket(rw io.ReadWriter) *ByteStreamSocket {
	return &ByteStreamSocket{w: rw, r: bufio.NewReader(rw)}
}

func (s *ByteStreamSocket) writeMsg(m byteStreamMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = s.w.Write(b)
	return err
}

func (s *ByteStreamSocket) readMsg(ctx context.Context) (byteStreamMsg, error) {
	type result struct {
		msg byteStreamMsg
		err error
	}
	done := make(chan result, 1)
	go func() {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			done <- result{err: fmt.Errorf("%w: read: %v", errs.ErrRendezvousTransient, err)}
			return
		}
		var m byteStreamMsg
		if err := json.Unmarshal(line, &m); err != nil {
			done <- result{err: fmt.Errorf("%w: decode: %v", errs.ErrSignalingParse, err)}
			return
		}
		done <- result{msg: m}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return byteStreamMsg{}, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, ctx.Err())
	}
}

// Offer writes an "offer" message and waits for the peer's reply: an
// "answer" message carrying its answer, or an "offer" message of its own,
// which makes the caller the answerer.
func (s *ByteStreamSocket) Offer(ctx context.Context, localOfferSDP string) (OfferResponse, error) {
	if err := s.writeMsg(byteStreamMsg{Kind: "offer", SDP: localOfferSDP}); err != nil {
		return OfferResponse{}, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	m, err := s.readMsg(ctx)
	if err != nil {
		return OfferResponse{}, err
	}
	switch m.Kind {
	case "answer":
		return OfferResponse{IsOffer: false, SDP: m.SDP}, nil
	case "offer":
		return OfferResponse{IsOffer: true, SDP: m.SDP}, nil
	default:
		return OfferResponse{}, fmt.Errorf("%w: unexpected reply kind %q", errs.ErrSignalingParse, m.Kind)
	}
}

// Answer serializes an AnswerDesc message; no reply is expected.
func (s *ByteStreamSocket) Answer(ctx context.Context, localAnswerSDP string) error {
	if err := s.writeMsg(byteStreamMsg{Kind: "answer", SDP: localAnswerSDP}); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, err)
	}
	return nil
}
