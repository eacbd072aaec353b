package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send unless the channel is CONNECTED.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned when Connect is called on a running client.
	ErrAlreadyConnected = errors.New("already connected")
)

// TransportError is a push-channel failure: a failed handshake, a dropped
// connection or a failed publish. It only ever drives reconnection and the
// state indicator.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError is an inbound frame that could not be decoded. Such
// frames are logged and dropped.
type MalformedPayloadError struct {
	Destination string
	Err         error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload on %s: %v", e.Destination, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
