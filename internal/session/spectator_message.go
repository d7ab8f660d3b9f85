package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/junowen-net/core/internal/errs"
)

// SpectatorKind tags a spectator-session wire message. The protocol is
// one-way: the host sends, the guest only receives.
type SpectatorKind uint8

const (
	SpectatorKindInitSpectator SpectatorKind = iota
	SpectatorKindInitRound
	SpectatorKindInputs
)

// SpectatorInitial is the snapshot a newly attached watcher needs to land on
// the correct screen and play forward.
type SpectatorInitial struct {
	P1Name       string
	P2Name       string
	GameSettings [12]byte

	Screen      uint16
	Difficulty  uint8
	P1Character uint8
	P2Character uint8
	P1Card      uint8
	P2Card      uint8
}

// SpectatorMessage is the tagged union carried over a spectator session's
// data channel.
type SpectatorMessage struct {
	Kind SpectatorKind

	InitSpectator *SpectatorInitial
	RoundInitial  *RoundInitial
	P1, P2        uint16
}

// EncodeSpectator serializes m as a single data-channel message.
func EncodeSpectator(m SpectatorMessage) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(m.Kind))

	switch m.Kind {
	case SpectatorKindInitSpectator:
		if m.InitSpectator == nil {
			return nil, fmt.Errorf("session: init_spectator message missing payload")
		}
		writeSpectatorInitial(buf, m.InitSpectator)
	case SpectatorKindInitRound:
		writeOptionalRoundInitial(buf, m.RoundInitial)
	case SpectatorKindInputs:
		binary.Write(buf, binary.BigEndian, m.P1)
		binary.Write(buf, binary.BigEndian, m.P2)
	default:
		return nil, fmt.Errorf("session: unknown spectator message kind %d", m.Kind)
	}
	return buf.Bytes(), nil
}

func writeSpectatorInitial(buf *bytes.Buffer, si *SpectatorInitial) {
	writeShortString(buf, si.P1Name)
	writeShortString(buf, si.P2Name)
	buf.Write(si.GameSettings[:])
	binary.Write(buf, binary.BigEndian, si.Screen)
	buf.WriteByte(si.Difficulty)
	buf.WriteByte(si.P1Character)
	buf.WriteByte(si.P2Character)
	buf.WriteByte(si.P1Card)
	buf.WriteByte(si.P2Card)
}

func writeShortString(buf *bytes.Buffer, s string) {
	b := []byte(s)
	if len(b) > 255 {
		b = b[:255]
	}
	buf.WriteByte(byte(len(b)))
	buf.Write(b)
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSpectator parses one wire payload produced by EncodeSpectator.
func DecodeSpectator(b []byte) (SpectatorMessage, error) {
	r := bytes.NewReader(b)
	kindByte, err := r.ReadByte()
	if err != nil {
		return SpectatorMessage{}, fmt.Errorf("session: empty spectator message: %w", errs.ErrDesyncWarning)
	}

	switch SpectatorKind(kindByte) {
	case SpectatorKindInitSpectator:
		si, err := readSpectatorInitial(r)
		if err != nil {
			return SpectatorMessage{}, err
		}
		return SpectatorMessage{Kind: SpectatorKindInitSpectator, InitSpectator: si}, nil

	case SpectatorKindInitRound:
		ri, err := readOptionalRoundInitial(r)
		if err != nil {
			return SpectatorMessage{}, err
		}
		return SpectatorMessage{Kind: SpectatorKindInitRound, RoundInitial: ri}, nil

	case SpectatorKindInputs:
		var p1, p2 uint16
		if err := binary.Read(r, binary.BigEndian, &p1); err != nil {
			return SpectatorMessage{}, fmt.Errorf("session: truncated spectator inputs: %w", errs.ErrDesyncWarning)
		}
		if err := binary.Read(r, binary.BigEndian, &p2); err != nil {
			return SpectatorMessage{}, fmt.Errorf("session: truncated spectator inputs: %w", errs.ErrDesyncWarning)
		}
		return SpectatorMessage{Kind: SpectatorKindInputs, P1: p1, P2: p2}, nil

	default:
		return SpectatorMessage{}, fmt.Errorf("session: unknown spectator message kind %d: %w", kindByte, errs.ErrDesyncWarning)
	}
}

func readSpectatorInitial(r *bytes.Reader) (*SpectatorInitial, error) {
	si := &SpectatorInitial{}
	var err error
	if si.P1Name, err = readShortString(r); err != nil {
		return nil, fmt.Errorf("session: truncated init_spectator p1_name: %w", errs.ErrDesyncWarning)
	}
	if si.P2Name, err = readShortString(r); err != nil {
		return nil, fmt.Errorf("session: truncated init_spectator p2_name: %w", errs.ErrDesyncWarning)
	}
	if _, err := io.ReadFull(r, si.GameSettings[:]); err != nil {
		return nil, fmt.Errorf("session: truncated init_spectator settings: %w", errs.ErrDesyncWarning)
	}
	if err := binary.Read(r, binary.BigEndian, &si.Screen); err != nil {
		return nil, fmt.Errorf("session: truncated init_spectator screen: %w", errs.ErrDesyncWarning)
	}
	fields := []*uint8{&si.Difficulty, &si.P1Character, &si.P2Character, &si.P1Card, &si.P2Card}
	for _, f := range fields {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("session: truncated init_spectator fields: %w", errs.ErrDesyncWarning)
		}
		*f = b
	}
	return si, nil
}
