package rendezvous

import "errors"

// ErrKeyMismatch is returned by UpdateIfKeyMatches and Delete when the
// supplied key does not match the room's stored owner key.
var ErrKeyMismatch = errors.New("rendezvous: key mismatch")

// ErrNotFound is returned when no room exists for a name.
var ErrNotFound = errors.New("rendezvous: room not found")

// RoomStore is the pluggable storage backend. Two atomic
// primitives carry the whole protocol: a conditional insert and a
// conditional update, so any key-value store with compare-and-swap semantics
// can back it.
type RoomStore interface {
	// PutIfAbsent inserts room only if no live (unexpired) room exists for
	// room.Name. Returns the room that ended up stored for that name (either
	// the one just inserted, or the pre-existing one) and whether the insert
	// happened.
	PutIfAbsent(room Room, nowUnix int64) (inserted bool, stored Room, err error)

	// UpdateIfKeyMatches applies mutate to the stored room only if its Key
	// equals key. Returns ErrNotFound / ErrKeyMismatch otherwise.
	UpdateIfKeyMatches(name, key string, nowUnix int64, mutate func(*Room)) (Room, error)

	// Get returns the live room for name, or ErrNotFound if absent/expired.
	Get(name string, nowUnix int64) (Room, error)

	// Delete removes the room for name if key matches its stored key.
	Delete(name, key string, nowUnix int64) error

	// PutAnswerIfAbsent stores an answer in the given slot for name, only if
	// that slot has no unconsumed answer already, so a second join attempt
	// gets a 409 instead of silently overwriting the first answer. The room for name must exist.
	PutAnswerIfAbsent(name string, slot answerSlot, sdp string, ttl int64, nowUnix int64) (inserted bool, err error)

	// TakeAnswer atomically reads and removes the answer in the given slot
	// for name, so it is consumed exactly once. ok is false if none is
	// pending.
	TakeAnswer(name string, slot answerSlot, nowUnix int64) (sdp string, ok bool, err error)
}
