package statemachine

import "github.com/junowen-net/core/internal/session"

// SpectatorMachine drives a watcher's local, non-authoritative replica of
// the match from the one-way spectator stream: write seeds at round
// boundaries, write both player inputs on every frame.
type SpectatorMachine struct {
	acc  GameAccessor
	spec *session.SpectatorSession

	state   State
	started bool
}

// NewSpectatorMachine constructs a spectator-role state machine.
func NewSpectatorMachine(acc GameAccessor, spec *session.SpectatorSession) *SpectatorMachine {
	return &SpectatorMachine{acc: acc, spec: spec}
}

func (m *SpectatorMachine) State() State { return m.state }

// Tick blocks for the next spectator message and applies it. Unlike the
// battle Machine, pacing is driven entirely by the host's outgoing stream
// rather than the local screen id, so Tick should be called from its own
// receive loop rather than once per render frame.
func (m *SpectatorMachine) Tick() error {
	msg, err := m.spec.Recv()
	if err != nil {
		return err
	}
	switch msg.Kind {
	case session.SpectatorKindInitSpectator:
		m.applyInitSpectator(msg.InitSpectator)
		m.state = StateSelect
	case session.SpectatorKindInitRound:
		m.applyInitRound(msg.RoundInitial)
	case session.SpectatorKindInputs:
		m.acc.WriteInput(PlayerOne, msg.P1)
		m.acc.WriteInput(PlayerTwo, msg.P2)
	}
	return nil
}

func (m *SpectatorMachine) applyInitRound(ri *session.RoundInitial) {
	if ri != nil {
		m.acc.WriteSeeds(ri.Seeds)
	}
	m.state = StateGame
}

func (m *SpectatorMachine) applyInitSpectator(si *session.SpectatorInitial) {
	if si == nil {
		return
	}
	m.acc.WriteBattleSettings(si.GameSettings)
	m.acc.WriteSelection(si.Difficulty, si.P1Character, si.P2Character, si.P1Card, si.P2Card)
	m.acc.DriveMenuToward(Screen(si.Screen))
	m.started = true
}
