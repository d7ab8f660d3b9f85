// Package session implements the battle and spectator session protocols
// (C6/C7): typed messages carried one-per-data-channel-message over a
// transport.DataChannel, routed through an inputqueue.DelayedQueue.
package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/inputqueue"
)

// Kind tags a battle-session wire message.
type Kind uint8

const (
	KindInput Kind = iota
	KindDelay
	KindInitMatch
	KindInitRound
)

// MatchInitial is the 12-byte settings blob the host decided in its local
// menu, shipped once per match.
type MatchInitial struct {
	GameSettings [12]byte
}

// RoundInitial carries the four RNG seeds the host samples at round start.
type RoundInitial struct {
	Seeds [4]uint16
}

// Message is the tagged union carried over a battle session's data channel.
// Only the fields relevant to Kind are populated.
type Message struct {
	Kind Kind

	Input inputqueue.Input
	Delay uint8

	PlayerName   string
	MatchInitial *MatchInitial
	RoundInitial *RoundInitial
}

// Encode serializes m as a single self-delimiting binary payload, suitable
// for one data-channel Send call (the channel itself preserves message
// boundaries, so no outer length prefix is needed).
func Encode(m Message) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(m.Kind))

	switch m.Kind {
	case KindInput:
		binary.Write(buf, binary.BigEndian, uint16(m.Input))
	case KindDelay:
		buf.WriteByte(m.Delay)
	case KindInitMatch:
		name := []byte(m.PlayerName)
		if len(name) > 255 {
			return nil, fmt.Errorf("session: player name too long (%d bytes)", len(name))
		}
		buf.WriteByte(byte(len(name)))
		buf.Write(name)
		writeOptionalMatchInitial(buf, m.MatchInitial)
	case KindInitRound:
		writeOptionalRoundInitial(buf, m.RoundInitial)
	default:
		return nil, fmt.Errorf("session: unknown message kind %d", m.Kind)
	}
	return buf.Bytes(), nil
}

func writeOptionalMatchInitial(buf *bytes.Buffer, mi *MatchInitial) {
	if mi == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(mi.GameSettings[:])
}

func writeOptionalRoundInitial(buf *bytes.Buffer, ri *RoundInitial) {
	if ri == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	for _, s := range ri.Seeds {
		binary.Write(buf, binary.BigEndian, s)
	}
}

// Decode parses one wire payload produced by Encode. Malformed input is
// wrapped in errs.ErrDesyncWarning, kept distinct from the signaling codec's
// errs.ErrSignalingParse since the two layers fail for different reasons.
func Decode(b []byte) (Message, error) {
	r := bytes.NewReader(b)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("session: empty message: %w", errs.ErrDesyncWarning)
	}

	switch Kind(kindByte) {
	case KindInput:
		var v uint16
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return Message{}, fmt.Errorf("session: truncated input message: %w", errs.ErrDesyncWarning)
		}
		return Message{Kind: KindInput, Input: inputqueue.Input(v)}, nil

	case KindDelay:
		d, err := r.ReadByte()
		if err != nil {
			return Message{}, fmt.Errorf("session: truncated delay message: %w", errs.ErrDesyncWarning)
		}
		return Message{Kind: KindDelay, Delay: d}, nil

	case KindInitMatch:
		nameLen, err := r.ReadByte()
		if err != nil {
			return Message{}, fmt.Errorf("session: truncated init_match: %w", errs.ErrDesyncWarning)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return Message{}, fmt.Errorf("session: truncated init_match name: %w", errs.ErrDesyncWarning)
		}
		mi, err := readOptionalMatchInitial(r)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindInitMatch, PlayerName: string(name), MatchInitial: mi}, nil

	case KindInitRound:
		ri, err := readOptionalRoundInitial(r)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindInitRound, RoundInitial: ri}, nil

	default:
		return Message{}, fmt.Errorf("session: unknown message kind %d: %w", kindByte, errs.ErrDesyncWarning)
	}
}

func readOptionalMatchInitial(r *bytes.Reader) (*MatchInitial, error) {
	has, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("session: truncated init_match presence byte: %w", errs.ErrDesyncWarning)
	}
	if has == 0 {
		return nil, nil
	}
	var mi MatchInitial
	if _, err := io.ReadFull(r, mi.GameSettings[:]); err != nil {
		return nil, fmt.Errorf("session: truncated match_initial: %w", errs.ErrDesyncWarning)
	}
	return &mi, nil
}

func readOptionalRoundInitial(r *bytes.Reader) (*RoundInitial, error) {
	has, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("session: truncated init_round presence byte: %w", errs.ErrDesyncWarning)
	}
	if has == 0 {
		return nil, nil
	}
	var ri RoundInitial
	for i := range ri.Seeds {
		if err := binary.Read(r, binary.BigEndian, &ri.Seeds[i]); err != nil {
			return nil, fmt.Errorf("session: truncated round_initial: %w", errs.ErrDesyncWarning)
		}
	}
	return &ri, nil
}
