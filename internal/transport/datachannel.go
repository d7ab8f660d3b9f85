package transport

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// DataChannel wraps a pion DataChannel. Incoming messages are handed over on
// a bounded single-slot channel. Outgoing messages are not queued: Send
// writes straight to the pion channel under a mutex, with no background
// sender goroutine. Recv suspends until one of (incoming byte, channel
// close, peer-connection disconnect).
type DataChannel struct {
	dc *webrtc.DataChannel

	openedCh chan struct{}
	openOnce sync.Once

	incoming chan []byte
	closedCh chan struct{}
	closeOnce sync.Once

	sendMu sync.Mutex
}

func newDataChannel(dc *webrtc.DataChannel) *DataChannel {
	return &DataChannel{
		dc:       dc,
		openedCh: make(chan struct{}),
		incoming: make(chan []byte, 1),
		closedCh: make(chan struct{}),
	}
}

// Protocol returns the negotiated data-channel protocol string.
func (d *DataChannel) Protocol() string {
	return d.dc.Protocol()
}

func (d *DataChannel) noteOpen() {
	d.openOnce.Do(func() { close(d.openedCh) })
}

func (d *DataChannel) noteClosed() {
	d.closeOnce.Do(func() { close(d.closedCh) })
}

// noteConnectionDown is called by the owning Connection's OnConnectionStateChange
// handler when the PC transitions to Failed or Disconnected. It unblocks Recv
// the same way a channel close does: Recv returns false whether the channel
// closed or the underlying connection transitioned to Disconnected.
func (d *DataChannel) noteConnectionDown() {
	d.noteClosed()
}

func (d *DataChannel) deliver(data []byte) {
	select {
	case d.incoming <- data:
	case <-d.closedCh:
	}
}

// Send writes bytes to the channel. It does not block on network I/O beyond
// pion's own internal buffering.
func (d *DataChannel) Send(data []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return d.dc.Send(data)
}

// Recv blocks until one message arrives, the channel closes, or the peer
// connection disconnects. The second return is false in the latter two cases.
func (d *DataChannel) Recv() ([]byte, bool) {
	select {
	case data := <-d.incoming:
		return data, true
	case <-d.closedCh:
		return nil, false
	}
}

// Close closes the underlying data channel and unblocks any pending Recv.
func (d *DataChannel) Close() error {
	d.noteClosed()
	return d.dc.Close()
}
