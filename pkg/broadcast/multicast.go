package broadcast

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

const maxDatagram = 64 * 1024

// Multicast is a Channel backed by a UDP multicast group. All nodes that join
// the same group address see each other's broadcasts, including their own
// (multicast loopback).
type Multicast struct {
	group *net.UDPAddr
	recv  *net.UDPConn
	send  *net.UDPConn
	log   *zap.Logger

	mu     sync.Mutex
	subs   map[int]Handler
	nextID int
	closed bool

	done chan struct{}
}

// NewMulticast joins the multicast group at addr (e.g. "239.77.77.77:7946")
// and starts the read loop. Close releases the sockets.
func NewMulticast(addr string, log *zap.Logger) (*Multicast, error) {
	if log == nil {
		log = zap.NewNop()
	}
	group, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("broadcast: resolve group %q: %w", addr, err)
	}
	recv, err := net.ListenMulticastUDP("udp", nil, group)
	if err != nil {
		return nil, fmt.Errorf("broadcast: join group %q: %w", addr, err)
	}
	_ = recv.SetReadBuffer(maxDatagram)
	send, err := net.DialUDP("udp", nil, group)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("broadcast: dial group %q: %w", addr, err)
	}

	m := &Multicast{
		group: group,
		recv:  recv,
		send:  send,
		log:   log,
		subs:  make(map[int]Handler),
		done:  make(chan struct{}),
	}
	go m.readLoop()
	return m, nil
}

func (m *Multicast) Broadcast(payload []byte) error {
	if len(payload) > maxDatagram {
		return fmt.Errorf("broadcast: payload of %d bytes exceeds datagram limit", len(payload))
	}
	_, err := m.send.Write(payload)
	return err
}

func (m *Multicast) Subscribe(fn Handler) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Close leaves the group and stops the read loop. Subscribed handlers receive
// no further messages.
func (m *Multicast) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	err := m.recv.Close()
	if serr := m.send.Close(); err == nil {
		err = serr
	}
	<-m.done
	return err
}

func (m *Multicast) readLoop() {
	defer close(m.done)
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := m.recv.ReadFromUDP(buf)
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.log.Warn("multicast read failed", zap.Error(err))
			}
			return
		}

		m.mu.Lock()
		handlers := make([]Handler, 0, len(m.subs))
		for _, fn := range m.subs {
			handlers = append(handlers, fn)
		}
		m.mu.Unlock()

		payload := make([]byte, n)
		copy(payload, buf[:n])
		for _, fn := range handlers {
			fn(payload)
		}
	}
}
