package signaling

import (
	"context"
	"fmt"
	"time"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/transport"
)

// OfferResponse is the result of Socket.Offer: either the remote answered our
// offer directly, or the remote raced us with its own offer (RendezvousConflict,
// and we must flip to answerer.
type OfferResponse struct {
	IsOffer bool
	SDP     string
}

// Socket is the polymorphic signaling back-channel contract, modeled as a
// small capability set: the only surface a back-channel implementation
// needs to provide to drive the offer/answer handshake. This is the only
// place in the core that needs runtime dispatch across back-channels.
type Socket interface {
	// Offer sends a local offer and waits for the remote's response.
	Offer(ctx context.Context, localOfferSDP string) (OfferResponse, error)
	// Answer sends a local answer; no reply is expected.
	Answer(ctx context.Context, localAnswerSDP string) error
}

// NewConnectionFunc constructs a fresh transport.Connection. Injected so
// ReceiveSignaling doesn't hardcode a STUN server.
type NewConnectionFunc func() (*transport.Connection, error)

// Result is what ReceiveSignaling hands back once the data channel opens.
type Result struct {
	Channel *transport.DataChannel
	Conn    *transport.Connection
	IsHost  bool
}

// ReceiveSignaling is the default driver composing a Socket and a transport
// constructor into a connected channel.
func ReceiveSignaling(ctx context.Context, sock Socket, newConn NewConnectionFunc, openTimeout time.Duration) (Result, error) {
	conn, err := newConn()
	if err != nil {
		return Result{}, err
	}

	localOffer, err := conn.StartAsOfferer()
	if err != nil {
		return Result{}, err
	}

	resp, err := sock.Offer(ctx, localOffer)
	if err != nil {
		return Result{}, err
	}

	isHost := true
	if resp.IsOffer {
		// Remote raced us with its own offer: discard our connection, become
		// the answerer instead (a rendezvous-conflict race).
		_ = conn.Close()
		conn, err = newConn()
		if err != nil {
			return Result{}, err
		}
		localAnswer, err := conn.StartAsAnswerer(resp.SDP)
		if err != nil {
			return Result{}, err
		}
		if err := sock.Answer(ctx, localAnswer); err != nil {
			return Result{}, err
		}
		isHost = false
	} else {
		if err := conn.SetAnswer(resp.SDP); err != nil {
			return Result{}, err
		}
	}

	ch, err := conn.WaitForOpenDataChannel(ctx, openTimeout)
	if err != nil {
		_ = conn.Close()
		return Result{}, err
	}
	return Result{Channel: ch, Conn: conn, IsHost: isHost}, nil
}

// errSocketClosed wraps errs.ErrRendezvousFatal for a signaling back channel
// that has been torn down. None of the socket implementations in this
// package returns it.
var errSocketClosed = fmt.Errorf("%w: signaling socket closed", errs.ErrRendezvousFatal)
