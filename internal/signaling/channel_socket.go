package signaling

import (
	"context"
	"fmt"
	"sync"

	"github.com/junowen-net/core/internal/errs"
)

// channelRoom is the shared state behind a ChannelSocket pair: whichever side
// calls Offer first becomes the offerer and waits for an answer; the second
// caller sees the first's offer and must flip to answerer, mirroring the
// shared-room happy path without any HTTP involved.
type channelRoom struct {
	mu sync.Mutex

	hasOffer bool
	offerSDP string

	answerCh chan string // delivered to the first caller once the second answers
}

func newChannelRoom() *channelRoom {
	return &channelRoom{answerCh: make(chan string, 1)}
}

// ChannelSocket is the in-process Socket implementation: the back-channel
// is one shared channelRoom holding the first caller's offer and a one-slot
// answer channel.
// Used when both peers run in the same process — automated tests, or a
// self-mediated clipboard UI.
type ChannelSocket struct {
	room *channelRoom
}

// NewChannelSocketPair builds two ChannelSockets sharing one room, one per
// peer, for same-process testing of the signaling + transport handshake.
func NewChannelSocketPair() (a, b *ChannelSocket) {
	room := newChannelRoom()
	return &ChannelSocket{room: room}, &ChannelSocket{room: room}
}

func (s *ChannelSocket) Offer(ctx context.Context, localOfferSDP string) (OfferResponse, error) {
	r := s.room
	r.mu.Lock()
	if r.hasOffer {
		// Someone already offered: we're the second caller, so this is a
		// conflict: switch to answerer using their offer.
		existing := r.offerSDP
		r.mu.Unlock()
		return OfferResponse{IsOffer: true, SDP: existing}, nil
	}
	r.hasOffer = true
	r.offerSDP = localOfferSDP
	r.mu.Unlock()

	select {
	case answer := <-r.answerCh:
		return OfferResponse{IsOffer: false, SDP: answer}, nil
	case <-ctx.Done():
		return OfferResponse{}, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, ctx.Err())
	}
}

func (s *ChannelSocket) Answer(ctx context.Context, localAnswerSDP string) error {
	select {
	case s.room.answerCh <- localAnswerSDP:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, ctx.Err())
	default:
		return fmt.Errorf("%w: no offerer waiting for an answer", errs.ErrRendezvousFatal)
	}
}
