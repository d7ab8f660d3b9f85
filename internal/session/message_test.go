package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junowen-net/core/internal/errs"
	"github.com/junowen-net/core/internal/inputqueue"
)

func TestMessageRoundTrip(t *testing.T) {
	settings := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	cases := []Message{
		{Kind: KindInput, Input: inputqueue.Input(0xBEEF)},
		{Kind: KindDelay, Delay: 4},
		{Kind: KindInitMatch, PlayerName: "host-player"},
		{Kind: KindInitMatch, PlayerName: "host-player", MatchInitial: &MatchInitial{GameSettings: settings}},
		{Kind: KindInitRound},
		{Kind: KindInitRound, RoundInitial: &RoundInitial{Seeds: [4]uint16{1, 2, 3, 4}}},
	}
	for _, want := range cases {
		b, err := Encode(want)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeEmptyMessageIsDesyncWarning(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, errs.ErrDesyncWarning)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.Error(t, err)
}
