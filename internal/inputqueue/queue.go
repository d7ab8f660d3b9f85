// Package inputqueue implements the delayed-input queue: a fixed-delay
// lockstep buffer that turns two independent per-frame input streams into a
// synchronized sequence of (p1, p2) pairs, with dynamic delay adjustment.
package inputqueue

import "sync"

// Input is one frame's button-state bitmask.
type Input uint16

type item struct {
	isDelay bool
	input   Input
	delay   uint8
}

// DelayedQueue turns two per-frame streams into synchronized pairs with a
// configurable delay. isHost decides p1/p2 ordering: the host's
// local stream becomes p1, the remote (guest) stream becomes p2.
type DelayedQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	local  []item
	remote []item

	d        int
	g        int
	maxSlack int
	isHost   bool

	closed   bool
	closeErr error
}

// New creates a queue with the given initial delay, clamping slack
// adjustments to ±maxSlack, a clamp chosen so a long stall can't let the
// slack counter grow without bound.
func New(initialDelay int, maxSlack int, isHost bool) *DelayedQueue {
	q := &DelayedQueue{
		d:        initialDelay,
		g:        -initialDelay,
		maxSlack: maxSlack,
		isHost:   isHost,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// EnqueueLocal appends one local input to the local stream.
func (q *DelayedQueue) EnqueueLocal(in Input) {
	q.mu.Lock()
	q.local = append(q.local, item{input: in})
	q.cond.Broadcast()
	q.mu.Unlock()
}

// EnqueueDelay appends a delay-change marker to the local stream. Only the
// host issues this; callers enforce that invariant.
func (q *DelayedQueue) EnqueueDelay(d uint8) {
	q.mu.Lock()
	q.local = append(q.local, item{isDelay: true, delay: d})
	q.cond.Broadcast()
	q.mu.Unlock()
}

// EnqueueRemote appends one decoded remote input to the remote stream.
func (q *DelayedQueue) EnqueueRemote(in Input) {
	q.mu.Lock()
	q.remote = append(q.remote, item{input: in})
	q.cond.Broadcast()
	q.mu.Unlock()
}

// EnqueueRemoteDelay appends a delay-change marker decoded from the remote
// stream.
func (q *DelayedQueue) EnqueueRemoteDelay(d uint8) {
	q.mu.Lock()
	q.remote = append(q.remote, item{isDelay: true, delay: d})
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Close unblocks any pending DequeuePair with err — used when the transport
// disconnects, so a pending or future DequeuePair call fails instead of
// blocking forever.
func (q *DelayedQueue) Close(err error) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.closeErr = err
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// DequeuePair returns (p1, p2), blocking until both
// local and remote heads are available.
func (q *DelayedQueue) DequeuePair() (p1, p2 Input, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return 0, 0, q.closeErr
		}

		if q.g < 0 {
			q.g++
			return 0, 0, nil
		}

		if len(q.local) > 0 && q.local[0].isDelay {
			d := q.local[0].delay
			q.local = q.local[1:]
			q.applyDelay(int(d))
			continue
		}
		if len(q.remote) > 0 && q.remote[0].isDelay {
			d := q.remote[0].delay
			q.remote = q.remote[1:]
			q.applyDelay(int(d))
			continue
		}

		if len(q.local) == 0 || len(q.remote) == 0 {
			q.cond.Wait()
			continue
		}

		localIn := q.local[0].input
		remoteIn := q.remote[0].input
		q.local = q.local[1:]
		q.remote = q.remote[1:]

		if q.g > 0 {
			// Over-buffered after a delay decrease: drop this pair and loop.
			q.g--
			continue
		}

		if q.isHost {
			return localIn, remoteIn, nil
		}
		return remoteIn, localIn, nil
	}
}

// applyDelay updates d and g when a Delay(d') marker is consumed from either
// stream: d <- d', g <- g + current_local_buffer_depth - d'.
func (q *DelayedQueue) applyDelay(dNew int) {
	localDepth := len(q.local)
	q.d = dNew
	q.g = q.g + localDepth - dNew
	if q.g > q.maxSlack {
		q.g = q.maxSlack
	}
	if q.g < -q.maxSlack {
		q.g = -q.maxSlack
	}
}

// Delay returns the current delay d.
func (q *DelayedQueue) Delay() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.d
}
