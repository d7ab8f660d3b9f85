package signaling

import (
	"context"
	"fmt"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/rendezvous"
)

// RendezvousSocket is the HTTP-rendezvous Socket implementation:
// back-channel is the Rendezvous service.
type RendezvousSocket struct {
	client *rendezvous.Client
	kind   rendezvous.RoomKind
	name   string

	key string // set once PUT succeeds; used by Answer's caller for delete-on-cancel
}

// NewRendezvousSocket targets one room name on one client.
func NewRendezvousSocket(client *rendezvous.Client, kind rendezvous.RoomKind, name string) *RendezvousSocket {
	return &RendezvousSocket{client: client, kind: kind, name: name}
}

// Key returns the owner key assigned by PUT, valid only after a successful
// Offer call. Used to issue the best-effort DELETE on cancellation.
func (s *RendezvousSocket) Key() string { return s.key }

func (s *RendezvousSocket) Offer(ctx context.Context, localOfferSDP string) (OfferResponse, error) {
	res, conflict, retry, err := s.client.Put(ctx, s.kind, s.name, localOfferSDP)
	if err != nil {
		return OfferResponse{}, err
	}
	if conflict {
		return OfferResponse{IsOffer: true, SDP: res.Offer}, nil
	}
	s.key = res.Key
	if res.Answer != "" {
		return OfferResponse{IsOffer: false, SDP: res.Answer}, nil
	}

	// Waiting key issued: poll KEEP until an answer appears, honoring the
	// server's Retry-After and adding jitter to avoid synchronized retries.
	for {
		select {
		case <-ctx.Done():
			return OfferResponse{}, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, ctx.Err())
		default:
		}

		answer, got, nextRetry, err := s.client.Keep(ctx, s.kind, s.name, s.key)
		if err != nil {
			return OfferResponse{}, err
		}
		if got {
			return OfferResponse{IsOffer: false, SDP: answer}, nil
		}
		rendezvous.JitteredSleep(ctx, nextRetry)
	}
}

func (s *RendezvousSocket) Answer(ctx context.Context, localAnswerSDP string) error {
	return s.client.Join(ctx, s.kind, s.name, localAnswerSDP)
}

// Abort issues a best-effort DELETE for the waiting room, matching the
// cancellation semantics: dropping a waiting-in-room handle sends a
// best-effort DELETE and exits.
func (s *RendezvousSocket) Abort(ctx context.Context) {
	if s.key == "" {
		return
	}
	_ = s.client.Delete(ctx, s.kind, s.name, s.key)
}
