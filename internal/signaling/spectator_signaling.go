package signaling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/rendezvous"
)

// ReceiveSpectatorSignaling runs one round of the host-as-offerer spectator
// attach cycle against a reserved room: post a fresh local offer as the
// room's spectator_offer, poll the same keep-alive endpoint the opponent
// pairing loop uses until a spectator answer appears, then wait for the
// data channel to open. name/key address the reserved room the host already
// owns; newConn is injected the same way ReceiveSignaling is.
//
// A "opponent" kind turning up here means a second opponent tried to pair
// against an already-paired room; it's logged and skipped rather than
// treated as a spectator connection.
func ReceiveSpectatorSignaling(ctx context.Context, client *rendezvous.Client, name, key string, newConn NewConnectionFunc, openTimeout time.Duration) (Result, error) {
	conn, err := newConn()
	if err != nil {
		return Result{}, err
	}

	localOffer, err := conn.StartAsOfferer()
	if err != nil {
		return Result{}, err
	}

	offer := localOffer
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return Result{}, fmt.Errorf("%w: %v", errs.ErrRendezvousTransient, ctx.Err())
		default:
		}

		kind, answer, got, retry, err := client.KeepReserved(ctx, name, key, offer)
		if err != nil {
			_ = conn.Close()
			return Result{}, err
		}
		offer = "" // posted once; keep refreshing TTL without re-notifying watchers

		if got {
			if kind != "spectator" {
				log.Printf("signaling: reserved-room keep returned kind=%q while polling for a spectator, ignoring", kind)
				rendezvous.JitteredSleep(ctx, retry)
				continue
			}
			if err := conn.SetAnswer(answer); err != nil {
				_ = conn.Close()
				return Result{}, err
			}
			ch, err := conn.WaitForOpenDataChannel(ctx, openTimeout)
			if err != nil {
				_ = conn.Close()
				return Result{}, err
			}
			return Result{Channel: ch, Conn: conn, IsHost: true}, nil
		}
		rendezvous.JitteredSleep(ctx, retry)
	}
}
