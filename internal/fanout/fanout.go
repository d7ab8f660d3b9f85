// Package fanout implements the spectator-host fan-out: the list of
// spectator sessions owned by a battling host, fed the same stream the
// battle session carries.
package fanout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/junowen-net/core/internal/rendezvous"
	"github.com/junowen-net/core/internal/session"
	"github.com/junowen-net/core/internal/signaling"
)

// watcher is one attached spectator's send side.
type watcher struct {
	ch *session.SpectatorSendSide
}

// SpectatorHost accepts new watchers mid-session, delivers an initial
// snapshot plus ongoing inputs, and reaps watchers whose send fails.
type SpectatorHost struct {
	mu       sync.Mutex
	watchers []*watcher

	lastInit  *session.SpectatorInitial
	lastRound *session.RoundInitial
}

// NewSpectatorHost returns an empty fan-out list.
func NewSpectatorHost() *SpectatorHost {
	return &SpectatorHost{}
}

// Attach adds a newly signaled watcher, immediately sending it the current
// selection snapshot and round seeds if a match is already underway.
func (h *SpectatorHost) Attach(send *session.SpectatorSendSide) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &watcher{ch: send}
	if h.lastInit != nil {
		if err := w.ch.SendInitSpectator(h.lastInit); err != nil {
			log.Printf("fanout: new watcher dropped on initial snapshot: %v", err)
			return
		}
	}
	if h.lastRound != nil {
		if err := w.ch.SendInitRound(h.lastRound); err != nil {
			log.Printf("fanout: new watcher dropped on round snapshot: %v", err)
			return
		}
	}
	h.watchers = append(h.watchers, w)
}

// BroadcastInitSpectator is called once per match, at selection time.
func (h *SpectatorHost) BroadcastInitSpectator(init *session.SpectatorInitial) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastInit = init
	h.send(func(w *watcher) error { return w.ch.SendInitSpectator(init) })
}

// BroadcastInitRound is called once per round, at round start.
func (h *SpectatorHost) BroadcastInitRound(round *session.RoundInitial) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRound = round
	h.send(func(w *watcher) error { return w.ch.SendInitRound(round) })
}

// BroadcastInputs is called once per frame during a round.
func (h *SpectatorHost) BroadcastInputs(p1, p2 uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send(func(w *watcher) error { return w.ch.SendInputs(p1, p2) })
}

// PollReservedRoom repeatedly signals with spectators against the reserved
// room the host already owns, attaching each one as it completes. It blocks
// until ctx is cancelled, so callers run it in its own goroutine alongside
// the battle itself. name/key address the room; newConn and openTimeout are
// forwarded to each signaling round the same way ReceiveSignaling uses them.
func (h *SpectatorHost) PollReservedRoom(ctx context.Context, client *rendezvous.Client, name, key string, newConn signaling.NewConnectionFunc, openTimeout time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := signaling.ReceiveSpectatorSignaling(ctx, client, name, key, newConn, openTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("fanout: spectator signaling round failed: %v", err)
			continue
		}
		h.Attach(session.NewSpectatorSendSide(res.Channel))
	}
}

// Count returns the number of currently attached watchers.
func (h *SpectatorHost) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// send calls fn against every watcher under the lock, dropping any watcher
// whose send fails. The battling peers are never affected by a watcher's
// failure.
func (h *SpectatorHost) send(fn func(w *watcher) error) {
	kept := h.watchers[:0]
	for _, w := range h.watchers {
		if err := fn(w); err != nil {
			log.Printf("fanout: dropping watcher after send failure: %v", err)
			continue
		}
		kept = append(kept, w)
	}
	h.watchers = kept
}
