// Package statemachine drives the host game through menu navigation,
// selects, loading, in-round play and rematches, pumping data between a
// battle or spectator session and the game's own input/RNG memory once per
// frame.
package statemachine

// Screen is the host game's menu/screen identifier, as read from its menu
// linked list.
type Screen int

const (
	ScreenUnknown Screen = iota
	ScreenTitle
	ScreenDifficultySelect
	ScreenCharacterSelect
	ScreenPlayerMatchupSelect
	ScreenGameLoading
)

// PlayerSlot selects which player's input slot an accessor call addresses.
type PlayerSlot int

const (
	PlayerOne PlayerSlot = iota
	PlayerTwo
)

// GameAccessor is the host-game collaborator contract: the set of memory
// reads/writes and hook installs the core requires, with the underlying
// process-memory patching treated as an opaque external implementation.
type GameAccessor interface {
	// Screen returns the currently active menu/screen id.
	Screen() Screen
	// DriveMenuToward issues the automatic menu inputs needed to navigate
	// from the current screen toward target.
	DriveMenuToward(target Screen)
	// ResetCursors resets menu cursor positions before a fresh select.
	ResetCursors()
	// SetFrameLimitSkip toggles the game's own frame-skip/fast-forward
	// behavior, which must be disabled for a lockstep match.
	SetFrameLimitSkip(enabled bool)

	// HasRoundObject reports whether the in-round game object currently
	// exists in memory.
	HasRoundObject() bool
	// RoundFrame returns the round object's frame counter.
	RoundFrame() int

	// ReadSeeds reads the four RNG seeds from the round object.
	ReadSeeds() [4]uint16
	// WriteSeeds writes the four RNG seeds into the round object.
	WriteSeeds(seeds [4]uint16)

	// ReadMenuSettings reads the 12-byte game-settings blob the local menu
	// just decided.
	ReadMenuSettings() [12]byte
	// WriteBattleSettings overwrites the in-game copy of the settings blob
	// (distinct address from the menu copy).
	WriteBattleSettings(settings [12]byte)

	// WriteSelection applies a snapshot of the character-select screen, used
	// to land a newly attached spectator on the host's current selections.
	WriteSelection(difficulty, p1Character, p2Character, p1Card, p2Card uint8)
	// ReadSelection reads the host's own locked-in character-select choices,
	// used to derive the snapshot a newly attached spectator is sent.
	ReadSelection() (difficulty, p1Character, p2Character, p1Card, p2Card uint8)

	// PlayerInputIndex reads the current player-1 input device index.
	PlayerInputIndex() int
	// ForcePlayerInputIndex overwrites the player-1 input device index.
	ForcePlayerInputIndex(idx int)

	// ReadInput reads the current input value of one player's input slot.
	ReadInput(slot PlayerSlot) uint16
	// WriteInput writes a value into one player's input slot.
	WriteInput(slot PlayerSlot, value uint16)

	// ReadHeldNumber reports the numeric key currently held on the host's
	// own input device, if any, letting the host dial in a new delay value
	// mid-match.
	ReadHeldNumber() (value uint8, held bool)
}
