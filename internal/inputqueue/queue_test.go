package inputqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSteadyStateInvariant(t *testing.T) {
	const d = 2
	const n = 20

	q := New(d, 60, true)
	for i := 0; i < n; i++ {
		q.EnqueueLocal(Input(i))
		q.EnqueueRemote(Input(1000 + i))
	}

	count := 0
	for {
		p1, p2, err := q.DequeuePair()
		require.NoError(t, err)
		if p1 == 0 && p2 == 0 && count < d {
			// synthetic warm-up pair
			count++
			continue
		}
		count++
		if count == n {
			break
		}
	}
	require.Equal(t, n, count)
}

func TestLockstepOrderingHostVsGuest(t *testing.T) {
	host := New(0, 60, true)
	guest := New(0, 60, false)

	host.EnqueueLocal(11)
	host.EnqueueRemote(22)
	guest.EnqueueLocal(22)
	guest.EnqueueRemote(11)

	hp1, hp2, err := host.DequeuePair()
	require.NoError(t, err)
	gp1, gp2, err := guest.DequeuePair()
	require.NoError(t, err)

	require.Equal(t, hp1, gp1)
	require.Equal(t, hp2, gp2)
}

func TestDisconnectSurfacesAsError(t *testing.T) {
	q := New(0, 60, true)
	wantErr := require.Error
	done := make(chan struct{})
	go func() {
		_, _, err := q.DequeuePair()
		wantErr(t, err)
		close(done)
	}()
	q.Close(errDisconnected)
	<-done
}

var errDisconnected = &testErr{"disconnected"}

type testErr struct{ s string }

func (e *testErr) Error() string { return e.s }
