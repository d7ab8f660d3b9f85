package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junowen-net/core/internal/fanout"
	"github.com/junowen-net/core/internal/inputqueue"
	"github.com/junowen-net/core/internal/session"
)

type fakeAccessor struct {
	screen       Screen
	hasRound     bool
	roundFrame   int
	seeds        [4]uint16
	battleSettings [12]byte
	inputIndex   int
	inputs       [2]uint16
	selection    [5]uint8
	heldNumber   uint8
	heldNumberOK bool
}

func (f *fakeAccessor) Screen() Screen                   { return f.screen }
func (f *fakeAccessor) DriveMenuToward(target Screen)     { f.screen = target }
func (f *fakeAccessor) ResetCursors()                     {}
func (f *fakeAccessor) SetFrameLimitSkip(enabled bool)    {}
func (f *fakeAccessor) HasRoundObject() bool              { return f.hasRound }
func (f *fakeAccessor) RoundFrame() int                   { return f.roundFrame }
func (f *fakeAccessor) ReadSeeds() [4]uint16              { return f.seeds }
func (f *fakeAccessor) WriteSeeds(s [4]uint16)            { f.seeds = s }
func (f *fakeAccessor) ReadMenuSettings() [12]byte        { return [12]byte{} }
func (f *fakeAccessor) WriteBattleSettings(s [12]byte)    { f.battleSettings = s }
func (f *fakeAccessor) WriteSelection(d, p1c, p2c, p1k, p2k uint8) {
	f.selection = [5]uint8{d, p1c, p2c, p1k, p2k}
}
func (f *fakeAccessor) ReadSelection() (uint8, uint8, uint8, uint8, uint8) {
	return f.selection[0], f.selection[1], f.selection[2], f.selection[3], f.selection[4]
}
func (f *fakeAccessor) PlayerInputIndex() int             { return f.inputIndex }
func (f *fakeAccessor) ForcePlayerInputIndex(idx int)      { f.inputIndex = idx }
func (f *fakeAccessor) ReadInput(slot PlayerSlot) uint16   { return f.inputs[slot] }
func (f *fakeAccessor) WriteInput(slot PlayerSlot, v uint16) { f.inputs[slot] = v }
func (f *fakeAccessor) ReadHeldNumber() (uint8, bool)      { return f.heldNumber, f.heldNumberOK }

type fakeBattle struct {
	remoteName   string
	matchInitial *session.MatchInitial
	roundInitial *session.RoundInitial
	ticks        int
	lastDelay    uint8
}

func (f *fakeBattle) InitMatch(localName string, local *session.MatchInitial) (string, *session.MatchInitial, error) {
	if local != nil {
		f.matchInitial = local
	}
	return f.remoteName, f.matchInitial, nil
}

func (f *fakeBattle) InitRound(local *session.RoundInitial) (*session.RoundInitial, error) {
	if local != nil {
		f.roundInitial = local
	}
	return f.roundInitial, nil
}

func (f *fakeBattle) Tick(local inputqueue.Input) (inputqueue.Input, inputqueue.Input, error) {
	f.ticks++
	return local, local + 1, nil
}

func (f *fakeBattle) SendDelay(d uint8) error {
	f.lastDelay = d
	return nil
}

func TestMachineAdvancesFromNullToSelect(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenTitle}
	battle := &fakeBattle{remoteName: "guest"}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{1})
	m.battle = battle // swap in the fake for test isolation

	require.NoError(t, m.Tick()) // Null -> Prepare
	require.Equal(t, StatePrepare, m.State())

	acc.screen = ScreenDifficultySelect
	require.NoError(t, m.Tick()) // Prepare -> Select (enterSelect not yet run)
	require.Equal(t, StateSelect, m.State())

	require.NoError(t, m.Tick()) // first Select tick runs init_match/init_round
	require.NotNil(t, battle.matchInitial)
	require.Equal(t, [12]byte{1}, battle.matchInitial.GameSettings)
}

func TestMachineForcesEmptyInputOnEarlyRoundFrames(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenGameLoading, hasRound: true, roundFrame: 0}
	battle := &fakeBattle{}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{})
	m.battle = battle
	m.state = StateGame

	acc.inputs[0] = 0xFF
	require.NoError(t, m.Tick())
	require.Equal(t, 0, battle.ticks, "early round frames must not consume the queue")
	require.Equal(t, uint16(0), acc.inputs[PlayerOne])
	require.Equal(t, uint16(0), acc.inputs[PlayerTwo])
}

func TestMachineTransitionsToBackToSelectWhenRoundEnds(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenGameLoading, hasRound: true, roundFrame: 5}
	battle := &fakeBattle{}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{})
	m.battle = battle
	m.state = StateGame

	require.NoError(t, m.Tick())
	require.Equal(t, 1, battle.ticks)

	acc.hasRound = false
	require.NoError(t, m.Tick())
	require.Equal(t, StateBackToSelect, m.State())
}

func TestControllerReassignmentForcesIndexZero(t *testing.T) {
	acc := &fakeAccessor{inputIndex: 0}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{})

	acc.inputIndex = 2
	m.OnControllerReassignment()
	require.Equal(t, 0, acc.inputIndex, "must force a 0->nonzero reassignment back to 0")
}

func TestHostSendsDelayOnceWhenHeldNumberChanges(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenGameLoading, hasRound: true, roundFrame: 5}
	battle := &fakeBattle{}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{})
	m.battle = battle
	m.state = StateGame

	acc.heldNumber, acc.heldNumberOK = 3, true
	require.NoError(t, m.Tick())
	require.Equal(t, uint8(3), battle.lastDelay)

	battle.lastDelay = 0
	require.NoError(t, m.Tick())
	require.Equal(t, uint8(0), battle.lastDelay, "holding the same value must not re-send")

	acc.heldNumberOK = false
	require.NoError(t, m.Tick())
	acc.heldNumber, acc.heldNumberOK = 3, true
	require.NoError(t, m.Tick())
	require.Equal(t, uint8(3), battle.lastDelay, "releasing and re-holding the same value re-sends")
}

func TestGuestNeverSendsDelay(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenGameLoading, hasRound: true, roundFrame: 5}
	battle := &fakeBattle{}
	m := NewMachine(acc, &session.BattleSession{}, false, "guest", [12]byte{})
	m.battle = battle
	m.state = StateGame

	acc.heldNumber, acc.heldNumberOK = 7, true
	require.NoError(t, m.Tick())
	require.Equal(t, uint8(0), battle.lastDelay, "only the host reads/sends the held delay key")
}

func TestSpectatorBroadcastsAreNoOpWithoutWatchers(t *testing.T) {
	acc := &fakeAccessor{screen: ScreenTitle}
	battle := &fakeBattle{remoteName: "guest"}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{1})
	m.battle = battle
	m.SetSpectatorHost(fanout.NewSpectatorHost())

	require.NoError(t, m.Tick()) // Null -> Prepare
	acc.screen = ScreenDifficultySelect
	require.NoError(t, m.Tick()) // Prepare -> Select (firstSelectEntry set, enterSelect not yet run)
	require.Equal(t, StateSelect, m.State())

	require.NoError(t, m.Tick()) // runs enterSelect, broadcasts round init
	require.Equal(t, StateSelect, m.State())
	require.Equal(t, 0, m.spectators.Count(), "no watchers attached; broadcasts must be harmless no-ops")

	acc.screen = ScreenGameLoading
	require.NoError(t, m.Tick()) // Select -> GameLoading, broadcasts spectator init
	require.Equal(t, StateGameLoading, m.State())
	require.Equal(t, 0, m.spectators.Count())

	acc.hasRound = true
	acc.roundFrame = 5
	m.state = StateGame
	require.NoError(t, m.Tick()) // broadcasts per-frame inputs
	require.Equal(t, 0, m.spectators.Count())
}

func TestSettingsInjectionOverwritesReloadedBattleSettings(t *testing.T) {
	acc := &fakeAccessor{}
	m := NewMachine(acc, &session.BattleSession{}, true, "host", [12]byte{})
	m.matchInitial = &session.MatchInitial{GameSettings: [12]byte{9, 9, 9}}

	m.OnLoadedGameSettings()
	require.Equal(t, [12]byte{9, 9, 9}, acc.battleSettings)
}
