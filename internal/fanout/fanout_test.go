package fanout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendHelperReapsFailingWatchers(t *testing.T) {
	h := NewSpectatorHost()
	h.watchers = []*watcher{{}, {}, {}}

	calls := 0
	h.send(func(w *watcher) error {
		calls++
		if calls == 2 {
			return errors.New("boom")
		}
		return nil
	})

	require.Len(t, h.watchers, 2, "the one failing watcher must be dropped, the others kept")
}

func TestCountReflectsAttachedWatchers(t *testing.T) {
	h := NewSpectatorHost()
	require.Equal(t, 0, h.Count())

	h.watchers = []*watcher{{}, {}}
	require.Equal(t, 2, h.Count())
}
