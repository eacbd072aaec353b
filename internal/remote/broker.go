package remote

import (
	"errors"
	"net"
	"sync"

	"github.com/go-stomp/stomp/v3/server"
	"go.uber.org/zap"
)

// Broker is a STOMP broker fed with already-established connections (the
// WebSocket endpoint and the in-process relay) instead of a TCP listener.
type Broker struct {
	srv    *server.Server
	ln     *connListener
	logger *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	done  chan struct{}
}

// NewBroker creates a broker. Start must be called before Attach.
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		srv:    &server.Server{},
		ln:     newConnListener(),
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
		done:   make(chan struct{}),
	}
}

// Start serves STOMP on attached connections in the background.
func (b *Broker) Start() {
	go func() {
		defer close(b.done)
		if err := b.srv.Serve(b.ln); err != nil && !errors.Is(err, net.ErrClosed) {
			b.logger.Error("stomp broker stopped", zap.Error(err))
		}
	}()
}

// Attach hands a connection to the broker.
func (b *Broker) Attach(c net.Conn) error {
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	return b.ln.push(&trackedConn{Conn: c, b: b})
}

// Close stops accepting connections and closes the attached ones.
func (b *Broker) Close() error {
	err := b.ln.Close()
	b.mu.Lock()
	for c := range b.conns {
		_ = c.Close()
	}
	b.conns = make(map[net.Conn]struct{})
	b.mu.Unlock()
	return err
}

func (b *Broker) forget(c net.Conn) {
	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
}

type trackedConn struct {
	net.Conn
	b    *Broker
	once sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(func() { c.b.forget(c.Conn) })
	return c.Conn.Close()
}

// connListener is a net.Listener whose connections are pushed in by hand.
type connListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func newConnListener() *connListener {
	return &connListener{conns: make(chan net.Conn), closed: make(chan struct{})}
}

func (l *connListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *connListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *connListener) Addr() net.Addr { return brokerAddr{} }

func (l *connListener) push(c net.Conn) error {
	select {
	case l.conns <- c:
		return nil
	case <-l.closed:
		return net.ErrClosed
	}
}

type brokerAddr struct{}

func (brokerAddr) Network() string { return "stomp" }
func (brokerAddr) String() string  { return "in-process" }
