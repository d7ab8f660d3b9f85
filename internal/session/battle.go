package session

import (
	"fmt"
	"log"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/inputqueue"
	"github.com/junowen-net/core/internal/transport"
)

// BattleSession carries match init, round init and per-frame inputs between
// the two game instances. The host is authoritative: only it originates
// InitMatch/InitRound payloads and Delay changes.
type BattleSession struct {
	ch     *transport.DataChannel
	queue  *inputqueue.DelayedQueue
	isHost bool

	initMatchCh chan Message
	initRoundCh chan Message
}

// NewBattleSession starts the background receive loop and returns a ready
// session. initialDelay and maxSlack size the underlying DelayedQueue.
func NewBattleSession(ch *transport.DataChannel, isHost bool, initialDelay, maxSlack int) *BattleSession {
	s := &BattleSession{
		ch:          ch,
		queue:       inputqueue.New(initialDelay, maxSlack, isHost),
		isHost:      isHost,
		initMatchCh: make(chan Message, 1),
		initRoundCh: make(chan Message, 1),
	}
	go s.recvLoop()
	return s
}

func (s *BattleSession) recvLoop() {
	for {
		data, ok := s.ch.Recv()
		if !ok {
			s.queue.Close(fmt.Errorf("%w", errs.ErrSessionDisconnected))
			return
		}
		msg, err := Decode(data)
		if err != nil {
			log.Printf("session: dropping malformed battle message: %v", err)
			continue
		}
		switch msg.Kind {
		case KindInput:
			s.queue.EnqueueRemote(msg.Input)
		case KindDelay:
			if s.isHost {
				log.Printf("session: desync: received Delay from non-host peer, ignoring: %v", errs.ErrDesyncWarning)
				continue
			}
			s.queue.EnqueueRemoteDelay(msg.Delay)
		case KindInitMatch:
			if s.isHost && msg.MatchInitial != nil {
				log.Printf("session: desync: received host-only match_initial from guest: %v", errs.ErrDesyncWarning)
				msg.MatchInitial = nil
			}
			pushLatest(s.initMatchCh, msg)
		case KindInitRound:
			if s.isHost && msg.RoundInitial != nil {
				log.Printf("session: desync: received host-only round_initial from guest: %v", errs.ErrDesyncWarning)
				msg.RoundInitial = nil
			}
			pushLatest(s.initRoundCh, msg)
		}
	}
}

// pushLatest delivers msg to a cap-1 channel, dropping whatever undelivered
// value is already sitting there. recvLoop is the channel's only writer, so
// a desync that redelivers an InitMatch/InitRound nobody is waiting for
// can't block recvLoop and stall the Input messages behind it.
func pushLatest(ch chan Message, msg Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- msg
}

func (s *BattleSession) send(m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	return s.ch.Send(b)
}

// InitMatch exchanges one InitMatch message with the peer: the host sends
// local (non-nil), the guest sends nil and adopts whatever the host sent
// back. Returns the remote player name and the match's effective settings.
func (s *BattleSession) InitMatch(localName string, local *MatchInitial) (remoteName string, effective *MatchInitial, err error) {
	out := Message{Kind: KindInitMatch, PlayerName: localName}
	if s.isHost {
		out.MatchInitial = local
	}
	if err := s.send(out); err != nil {
		return "", nil, err
	}
	in := <-s.initMatchCh
	if s.isHost {
		return in.PlayerName, local, nil
	}
	return in.PlayerName, in.MatchInitial, nil
}

// InitRound exchanges one InitRound message for the coming round. The host
// passes its sampled seeds; the guest passes nil and receives the host's.
func (s *BattleSession) InitRound(local *RoundInitial) (effective *RoundInitial, err error) {
	out := Message{Kind: KindInitRound}
	if s.isHost {
		out.RoundInitial = local
	}
	if err := s.send(out); err != nil {
		return nil, err
	}
	in := <-s.initRoundCh
	if s.isHost {
		return local, nil
	}
	return in.RoundInitial, nil
}

// SendDelay issues a new delay value. Host-only; callers enforce that.
func (s *BattleSession) SendDelay(d uint8) error {
	s.queue.EnqueueDelay(d)
	return s.send(Message{Kind: KindDelay, Delay: d})
}

// Tick enqueues one local frame's input and returns the (p1, p2) pair ready
// to write into the game's input slots, blocking until both sides align.
func (s *BattleSession) Tick(local inputqueue.Input) (p1, p2 inputqueue.Input, err error) {
	if err := s.send(Message{Kind: KindInput, Input: local}); err != nil {
		return 0, 0, err
	}
	s.queue.EnqueueLocal(local)
	return s.queue.DequeuePair()
}

// Delay returns the queue's current delay.
func (s *BattleSession) Delay() int { return s.queue.Delay() }

// Close releases the underlying data channel.
func (s *BattleSession) Close() error { return s.ch.Close() }
