// Package errs defines the error kinds of the netplay core as sentinel
// errors so callers can distinguish them with errors.Is / errors.As instead of
// parsing strings.
package errs

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", ErrX) at the raise site so
// context survives while errors.Is still matches the kind.
var (
	// ErrSignalingParse: malformed code, unknown tag, base64/deflate failure.
	// Policy: play error sound, return to prior UI state.
	ErrSignalingParse = errors.New("signaling: parse error")

	// ErrRendezvousTransient: HTTP 5xx, timeout, DNS failure against the
	// rendezvous service. Policy: log, count, sleep and retry until aborted.
	ErrRendezvousTransient = errors.New("rendezvous: transient error")

	// ErrRendezvousConflict: room busy, 409 with the opposite offer.
	// Policy: switch role to answerer and continue.
	ErrRendezvousConflict = errors.New("rendezvous: room busy")

	// ErrRendezvousFatal: 400 on keep/delete, stale key.
	// Policy: end this waiting session; UI returns to room menu.
	ErrRendezvousFatal = errors.New("rendezvous: fatal error")

	// ErrTransportFailed: peer connection reported Failed.
	// Policy: end session; UI returns to lobby.
	ErrTransportFailed = errors.New("transport: connection failed")

	// ErrSessionDisconnected: data channel closed or PC disconnected mid-match.
	// Policy: end session; surface a visible disconnect indicator.
	ErrSessionDisconnected = errors.New("session: disconnected")

	// ErrDesyncWarning: unexpected protocol message from a non-authoritative
	// peer. Policy: log at warn level, do not terminate.
	ErrDesyncWarning = errors.New("session: desync warning")

	// ErrHostGameAccess: a host-game memory read/write failed. Policy: panic —
	// indicates code-offset drift against an unsupported game version.
	ErrHostGameAccess = errors.New("hostgame: accessor error")
)
