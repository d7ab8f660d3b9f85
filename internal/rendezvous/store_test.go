package rendezvous

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]RoomStore {
	t.Helper()
	dir := t.TempDir()

	js, err := newJSONStore(filepath.Join(dir, "rooms.json"))
	require.NoError(t, err)
	t.Cleanup(func() { js.close() })

	ss, err := newSQLiteStore(filepath.Join(dir, "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ss.close() })

	return map[string]RoomStore{"json": js, "sqlite": ss}
}

func TestAtMostOneRoomPerName(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			room := Room{Name: "abc", Kind: KindShared, Key: "k1", TTL: 1_000_000_000, OpponentOffer: "<offer>AAA</offer>"}
			inserted, stored, err := store.PutIfAbsent(room, 0)
			require.NoError(t, err)
			require.True(t, inserted)
			require.Equal(t, room.Key, stored.Key)

			other := Room{Name: "abc", Kind: KindShared, Key: "k2", TTL: 1_000_000_000, OpponentOffer: "<offer>BBB</offer>"}
			inserted, stored, err = store.PutIfAbsent(other, 0)
			require.NoError(t, err)
			require.False(t, inserted)
			require.Equal(t, "<offer>AAA</offer>", stored.OpponentOffer)
		})
	}
}

func TestOwnerOnlyMutation(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			room := Room{Name: "room1", Kind: KindShared, Key: "k1", TTL: 1_000_000_000}
			_, _, err := store.PutIfAbsent(room, 0)
			require.NoError(t, err)

			_, err = store.UpdateIfKeyMatches("room1", "wrong", 0, func(r *Room) { r.TTL = 999 })
			require.ErrorIs(t, err, ErrKeyMismatch)

			err = store.Delete("room1", "wrong", 0)
			require.ErrorIs(t, err, ErrKeyMismatch)

			got, err := store.Get("room1", 0)
			require.NoError(t, err)
			require.Equal(t, room.TTL, got.TTL)
		})
	}
}

func TestTTLSweep(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			expired := Room{Name: "stale", Kind: KindShared, Key: "k1", TTL: 100}
			inserted, _, err := store.PutIfAbsent(expired, 200)
			require.NoError(t, err)
			require.True(t, inserted)

			fresh := Room{Name: "stale", Kind: KindShared, Key: "k2", TTL: 1_000_000_000}
			inserted, stored, err := store.PutIfAbsent(fresh, 200)
			require.NoError(t, err)
			require.True(t, inserted, "PUT against an expired record must succeed and replace it")
			require.Equal(t, "k2", stored.Key)
		})
	}
}

func TestAnswerConsumedExactlyOnce(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			room := Room{Name: "match", Kind: KindReserved, Key: "k1", TTL: 1_000_000_000}
			_, _, err := store.PutIfAbsent(room, 0)
			require.NoError(t, err)

			inserted, err := store.PutAnswerIfAbsent("match", slotOpponent, "sdp-1", 1_000_000_000, 0)
			require.NoError(t, err)
			require.True(t, inserted)

			sdp, ok, err := store.TakeAnswer("match", slotOpponent, 0)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "sdp-1", sdp)

			_, ok, err = store.TakeAnswer("match", slotOpponent, 0)
			require.NoError(t, err)
			require.False(t, ok, "answer must not be readable twice")
		})
	}
}
