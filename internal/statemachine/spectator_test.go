package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junowen-net/core/internal/session"
)

func TestSpectatorMachineAppliesInitSpectator(t *testing.T) {
	acc := &fakeAccessor{}
	m := &SpectatorMachine{acc: acc}

	m.applyInitSpectator(&session.SpectatorInitial{
		Screen:      uint16(ScreenDifficultySelect),
		Difficulty:  2,
		P1Character: 3,
		P2Character: 4,
	})
	require.Equal(t, ScreenDifficultySelect, acc.screen)
	require.Equal(t, uint8(2), acc.selection[0])
	require.Equal(t, uint8(3), acc.selection[1])
}

func TestSpectatorMachineWritesSeedsOnInitRound(t *testing.T) {
	acc := &fakeAccessor{}
	m := &SpectatorMachine{acc: acc}

	m.state = StateSelect
	m.applyInitRound(&session.RoundInitial{Seeds: [4]uint16{1, 2, 3, 4}})
	require.Equal(t, [4]uint16{1, 2, 3, 4}, acc.seeds)
}
