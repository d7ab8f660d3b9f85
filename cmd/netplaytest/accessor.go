package main

import (
	"fmt"
	"sync"

	"github.com/junowen-net/core/internal/statemachine"
)

// memAccessor is a fake GameAccessor standing in for the host game's process
// memory, driving the select->loading->game->select loop automatically so
// this binary can soak-test the lockstep/delay invariants without a real
// game attached.
type memAccessor struct {
	mu sync.Mutex

	name     string
	screen   statemachine.Screen
	hasRound bool
	frame    int

	seeds    [4]uint16
	settings [12]byte

	inputIndex int
	inputs     [2]uint16

	selection    [5]uint8
	heldNumber   uint8
	heldNumberOK bool

	rounds int
}

func newMemAccessor(name string) *memAccessor {
	return &memAccessor{name: name, screen: statemachine.ScreenTitle}
}

func (a *memAccessor) Screen() statemachine.Screen {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

func (a *memAccessor) DriveMenuToward(target statemachine.Screen) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.screen = target
}

func (a *memAccessor) ResetCursors() {}

func (a *memAccessor) SetFrameLimitSkip(enabled bool) {}

func (a *memAccessor) HasRoundObject() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasRound
}

func (a *memAccessor) RoundFrame() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

func (a *memAccessor) ReadSeeds() [4]uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seeds
}

func (a *memAccessor) WriteSeeds(s [4]uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeds = s
}

func (a *memAccessor) ReadMenuSettings() [12]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func (a *memAccessor) WriteBattleSettings(s [12]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = s
}

func (a *memAccessor) WriteSelection(difficulty, p1c, p2c, p1k, p2k uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selection = [5]uint8{difficulty, p1c, p2c, p1k, p2k}
}

func (a *memAccessor) ReadSelection() (uint8, uint8, uint8, uint8, uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selection[0], a.selection[1], a.selection[2], a.selection[3], a.selection[4]
}

func (a *memAccessor) ReadHeldNumber() (uint8, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heldNumber, a.heldNumberOK
}

// setHeldNumber drives this instance's fake numeric-key hold; the real game
// would poll the input library's held-key state here instead.
func (a *memAccessor) setHeldNumber(v uint8, held bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.heldNumber, a.heldNumberOK = v, held
}

func (a *memAccessor) PlayerInputIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputIndex
}

func (a *memAccessor) ForcePlayerInputIndex(idx int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputIndex = idx
}

func (a *memAccessor) ReadInput(slot statemachine.PlayerSlot) uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inputs[slot]
}

func (a *memAccessor) WriteInput(slot statemachine.PlayerSlot, v uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputs[slot] = v
}

// setLocalInput drives this instance's fake controller; the real game would
// poll an input library here instead.
func (a *memAccessor) setLocalInput(slot statemachine.PlayerSlot, v uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputs[slot] = v
}

// advanceFixture mimics the game's own menu/round progression so Tick keeps
// making progress without a real renderer driving screen transitions.
func (a *memAccessor) advanceFixture() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.screen {
	case statemachine.ScreenDifficultySelect:
		a.screen = statemachine.ScreenGameLoading
	case statemachine.ScreenGameLoading:
		if !a.hasRound {
			a.hasRound = true
			a.frame = 0
		}
	}
	if a.hasRound {
		a.frame++
	}
}

func (a *memAccessor) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("%s screen=%d round=%v frame=%d", a.name, a.screen, a.hasRound, a.frame)
}
