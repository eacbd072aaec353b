package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"go.uber.org/zap"
)

// Subprotocol is the WebSocket subprotocol negotiated for STOMP 1.2.
const Subprotocol = "v12.stomp"

// disconnectTimeout bounds the wait for the broker's DISCONNECT receipt.
const disconnectTimeout = 2 * time.Second

// STOMPDialer dials STOMP sessions carried over a WebSocket.
type STOMPDialer struct {
	url       string
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewSTOMPDialer creates a dialer for the WebSocket endpoint at wsURL. A zero
// heartbeat disables STOMP heart-beating.
func NewSTOMPDialer(wsURL string, heartbeat time.Duration, logger *zap.Logger) *STOMPDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &STOMPDialer{url: wsURL, heartbeat: heartbeat, logger: logger}
}

// Dial performs the WebSocket handshake and then the STOMP CONNECT, both
// carrying the bearer token.
func (d *STOMPDialer) Dial(ctx context.Context, token string) (Channel, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	ws.SetReadLimit(1 << 20)

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(d.heartbeat, d.heartbeat),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}
	conn, err := stomp.Connect(websocket.NetConn(context.Background(), ws, websocket.MessageText), opts...)
	if err != nil {
		_ = ws.Close(websocket.StatusPolicyViolation, "stomp handshake failed")
		return nil, fmt.Errorf("stomp handshake: %w", err)
	}
	d.logger.Debug("stomp session established", zap.String("url", d.url))

	return &stompChannel{
		conn:   conn,
		ws:     ws,
		closed: make(chan struct{}),
		logger: d.logger,
	}, nil
}

type stompChannel struct {
	conn   *stomp.Conn
	ws     *websocket.Conn
	closed chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *stompChannel) Subscribe(destination string) (<-chan []byte, error) {
	sub, err := s.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-s.closed:
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if msg.Err != nil {
					s.logger.Debug("stomp subscription ended",
						zap.String("destination", destination), zap.Error(msg.Err))
					return
				}
				select {
				case out <- msg.Body:
				case <-s.closed:
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *stompChannel) Send(destination string, body []byte) error {
	return s.conn.Send(destination, "application/json", body)
}

func (s *stompChannel) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		done := make(chan error, 1)
		go func() { done <- s.conn.Disconnect() }()
		select {
		case err = <-done:
		case <-time.After(disconnectTimeout):
			err = fmt.Errorf("disconnect receipt timed out")
		}
		if err != nil {
			_ = s.conn.MustDisconnect()
		}
		_ = s.ws.CloseNow()
	})
	return err
}
