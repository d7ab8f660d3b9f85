package statemachine

import (
	"log"

	"github.com/junowen-net/core/internal/fanout"
	"github.com/junowen-net/core/internal/inputqueue"
	"github.com/junowen-net/core/internal/session"
)

// State is the battle-role session state: a deterministic function of
// the observed screen id and the presence of a round object.
type State int

const (
	StateNull State = iota
	StatePrepare
	StateSelect
	StateGameLoading
	StateGame
	StateBackToSelect
)

// battleDriver is the subset of *session.BattleSession the state machine
// needs, kept as an interface so tests can drive the Machine without a real
// transport.
type battleDriver interface {
	InitMatch(localName string, local *session.MatchInitial) (remoteName string, effective *session.MatchInitial, err error)
	InitRound(local *session.RoundInitial) (effective *session.RoundInitial, err error)
	Tick(local inputqueue.Input) (p1, p2 inputqueue.Input, err error)
	SendDelay(d uint8) error
}

// Machine is the battle-role per-frame driver. The host and guest run the
// same Machine; isHost only changes which side originates MatchInitial,
// RoundInitial and Delay.
type Machine struct {
	acc       GameAccessor
	battle    battleDriver
	isHost    bool
	localName string
	settings  [12]byte

	spectators *fanout.SpectatorHost

	state            State
	firstSelectEntry bool
	matchInitial     *session.MatchInitial
	remoteName       string
	lastInputIndex   int
	lastDelay        int
}

// NewMachine constructs a battle-role state machine. settings is the local
// menu's game-settings blob; only the host's value is ever shipped to the
// peer.
func NewMachine(acc GameAccessor, battle *session.BattleSession, isHost bool, localName string, settings [12]byte) *Machine {
	return &Machine{acc: acc, battle: battle, isHost: isHost, localName: localName, settings: settings, lastDelay: -1}
}

// SetSpectatorHost wires a fan-out list into the host side of a battle: the
// dequeued per-frame input pair and round seeds are copied to it as they're
// produced. A guest, or a host with no watchers yet, simply leaves this nil.
func (m *Machine) SetSpectatorHost(h *fanout.SpectatorHost) { m.spectators = h }

func (m *Machine) State() State { return m.state }

// Tick runs one frame of the state machine. Call once per the host game's
// render-loop frame.
func (m *Machine) Tick() error {
	switch m.state {
	case StateNull:
		m.state = StatePrepare

	case StatePrepare:
		m.acc.DriveMenuToward(ScreenDifficultySelect)
		if m.acc.Screen() == ScreenDifficultySelect {
			m.state = StateSelect
			m.firstSelectEntry = true
		}

	case StateSelect:
		if m.firstSelectEntry {
			if err := m.enterSelect(); err != nil {
				return err
			}
			m.firstSelectEntry = false
		}
		if err := m.pumpMenuInput(); err != nil {
			return err
		}
		switch m.acc.Screen() {
		case ScreenGameLoading:
			m.broadcastInitSpectator()
			m.state = StateGameLoading
		case ScreenPlayerMatchupSelect:
			m.state = StateNull
		}

	case StateGameLoading:
		if m.acc.HasRoundObject() {
			m.state = StateGame
		}

	case StateGame:
		m.OnControllerReassignment()
		if err := m.pumpGameInput(); err != nil {
			return err
		}
		if !m.acc.HasRoundObject() {
			m.state = StateBackToSelect
		}

	case StateBackToSelect:
		if m.acc.Screen() == ScreenCharacterSelect {
			m.state = StateSelect
			m.firstSelectEntry = true
		}
	}
	return nil
}

func (m *Machine) enterSelect() error {
	var local *session.MatchInitial
	if m.isHost {
		local = &session.MatchInitial{GameSettings: m.settings}
	}
	remoteName, effective, err := m.battle.InitMatch(m.localName, local)
	if err != nil {
		return err
	}
	m.matchInitial = effective
	m.remoteName = remoteName

	var roundLocal *session.RoundInitial
	if m.isHost {
		seeds := m.acc.ReadSeeds()
		roundLocal = &session.RoundInitial{Seeds: seeds}
	}
	roundEffective, err := m.battle.InitRound(roundLocal)
	if err != nil {
		return err
	}
	m.acc.WriteSeeds(roundEffective.Seeds)
	m.broadcastInitRound(roundEffective)

	m.acc.SetFrameLimitSkip(false)
	m.acc.ResetCursors()
	return nil
}

func (m *Machine) pumpMenuInput() error {
	local := m.acc.ReadInput(localSlot(m.isHost))
	p1, p2, err := m.battle.Tick(inputqueue.Input(local))
	if err != nil {
		return err
	}
	m.acc.WriteInput(PlayerOne, uint16(p1))
	m.acc.WriteInput(PlayerTwo, uint16(p2))
	return nil
}

func (m *Machine) pumpGameInput() error {
	// The game polls the input hook an indeterminate number of times on the
	// first frames of a round; force empty inputs until frame 1 so neither
	// side consumes real queue entries during that churn.
	if m.acc.RoundFrame() < 1 {
		m.acc.WriteInput(PlayerOne, 0)
		m.acc.WriteInput(PlayerTwo, 0)
		return nil
	}
	if m.isHost {
		if v, held := m.acc.ReadHeldNumber(); !held {
			m.lastDelay = -1
		} else if int(v) != m.lastDelay {
			if err := m.battle.SendDelay(v); err != nil {
				return err
			}
			m.lastDelay = int(v)
		}
	}
	local := m.acc.ReadInput(localSlot(m.isHost))
	p1, p2, err := m.battle.Tick(inputqueue.Input(local))
	if err != nil {
		return err
	}
	m.acc.WriteInput(PlayerOne, uint16(p1))
	m.acc.WriteInput(PlayerTwo, uint16(p2))
	if m.isHost && m.spectators != nil {
		m.spectators.BroadcastInputs(uint16(p1), uint16(p2))
	}
	return nil
}

func localSlot(isHost bool) PlayerSlot {
	if isHost {
		return PlayerOne
	}
	return PlayerTwo
}

// OnRoundOver runs the round-over hook: the host samples new seeds and sends
// them; the guest blocks until it receives and writes them.
func (m *Machine) OnRoundOver() error {
	var local *session.RoundInitial
	if m.isHost {
		seeds := m.acc.ReadSeeds()
		local = &session.RoundInitial{Seeds: seeds}
	}
	effective, err := m.battle.InitRound(local)
	if err != nil {
		return err
	}
	m.acc.WriteSeeds(effective.Seeds)
	m.broadcastInitRound(effective)
	return nil
}

// broadcastInitRound copies a round's seeds out to any attached watchers.
// No-op for a guest or a host with no spectator list wired in.
func (m *Machine) broadcastInitRound(round *session.RoundInitial) {
	if m.isHost && m.spectators != nil {
		m.spectators.BroadcastInitRound(round)
	}
}

// broadcastInitSpectator sends the locked-in selection snapshot once a
// match is heading into game loading, so any watcher attaching later can be
// caught up to the match in progress.
func (m *Machine) broadcastInitSpectator() {
	if !m.isHost || m.spectators == nil {
		return
	}
	p1Name, p2Name := m.localName, m.remoteName
	settings := m.settings
	if m.matchInitial != nil {
		settings = m.matchInitial.GameSettings
	}
	difficulty, p1Character, p2Character, p1Card, p2Card := m.acc.ReadSelection()
	m.spectators.BroadcastInitSpectator(&session.SpectatorInitial{
		P1Name:       p1Name,
		P2Name:       p2Name,
		GameSettings: settings,
		Screen:       uint16(ScreenGameLoading),
		Difficulty:   difficulty,
		P1Character:  p1Character,
		P2Character:  p2Character,
		P1Card:       p1Card,
		P2Card:       p2Card,
	})
}

// OnControllerReassignment observes the player-1 input index across the
// game's own reassignment call; if it was 0 before and nonzero after, it
// forces it back to 0.
func (m *Machine) OnControllerReassignment() {
	idx := m.acc.PlayerInputIndex()
	if m.lastInputIndex == 0 && idx != 0 {
		m.acc.ForcePlayerInputIndex(0)
		return
	}
	m.lastInputIndex = idx
}

// OnLoadedGameSettings overwrites the just-reloaded in-game settings with
// the match's effective settings so both instances run the host's
// configuration.
func (m *Machine) OnLoadedGameSettings() {
	if m.matchInitial == nil {
		log.Printf("statemachine: OnLoadedGameSettings called before match_initial was established")
		return
	}
	m.acc.WriteBattleSettings(m.matchInitial.GameSettings)
}
