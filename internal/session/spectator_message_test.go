package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpectatorMessageRoundTrip(t *testing.T) {
	cases := []SpectatorMessage{
		{
			Kind: SpectatorKindInitSpectator,
			InitSpectator: &SpectatorInitial{
				P1Name: "alice", P2Name: "bob",
				GameSettings: [12]byte{9, 9, 9},
				Screen:       7, Difficulty: 2,
				P1Character: 3, P2Character: 4, P1Card: 0, P2Card: 0,
			},
		},
		{Kind: SpectatorKindInitRound, RoundInitial: &RoundInitial{Seeds: [4]uint16{10, 20, 30, 40}}},
		{Kind: SpectatorKindInitRound},
		{Kind: SpectatorKindInputs, P1: 0x1234, P2: 0x5678},
	}
	for _, want := range cases {
		b, err := EncodeSpectator(want)
		require.NoError(t, err)
		got, err := DecodeSpectator(b)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeSpectatorUnknownKind(t *testing.T) {
	_, err := DecodeSpectator([]byte{0xFF})
	require.Error(t, err)
}

func TestEncodeSpectatorRejectsMissingInitPayload(t *testing.T) {
	_, err := EncodeSpectator(SpectatorMessage{Kind: SpectatorKindInitSpectator})
	require.Error(t, err)
}
