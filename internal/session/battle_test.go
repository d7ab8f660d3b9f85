package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushLatestDeliversToWaitingReader(t *testing.T) {
	ch := make(chan Message, 1)
	pushLatest(ch, Message{Kind: KindInitRound, PlayerName: "a"})
	got := <-ch
	require.Equal(t, "a", got.PlayerName)
}

func TestPushLatestReplacesUndeliveredValueInsteadOfBlocking(t *testing.T) {
	ch := make(chan Message, 1)
	pushLatest(ch, Message{Kind: KindInitRound, PlayerName: "stale"})
	// Nobody drained the first value; a second push must not block.
	done := make(chan struct{})
	go func() {
		pushLatest(ch, Message{Kind: KindInitRound, PlayerName: "fresh"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pushLatest blocked on a full channel with no reader")
	}

	got := <-ch
	require.Equal(t, "fresh", got.PlayerName, "the newer value must win over the stale undelivered one")
}
