// Package broadcast defines the shared channel that discovery advertisements
// travel over, together with two implementations: an in-process Hub for tests
// and single-process clusters, and a UDP Multicast channel for real networks.
//
// Delivery is best effort. Messages may be lost or duplicated; protocols
// built on a Channel must tolerate both.
package broadcast

// Handler consumes a raw message received from the channel. It is invoked on
// the channel's own execution context and must not retain the payload slice.
type Handler func(payload []byte)

// Channel is a best-effort, possibly lossy, possibly duplicating broadcast
// medium. Subscribe returns a function that removes the handler; calling it
// more than once is a no-op.
type Channel interface {
	Broadcast(payload []byte) error
	Subscribe(h Handler) (unsubscribe func())
}
