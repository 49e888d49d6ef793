package utils

import "errors"

var (
	ErrPacketTooShort    = errors.New("error: packet too short")
	ErrUnknownOpCode     = errors.New("error: unknown operation code")
	ErrWrongOpCode       = errors.New("error: invalid operation code")
	ErrMalformedOptions  = errors.New("error: malformed options section")
	ErrInvalidMode       = errors.New("error: invalid transfer mode")
	ErrDataPayloadTooBig = errors.New("error: payload exceeds max block size")
	ErrPacketMarshall    = errors.New("error: can not marshall packet")

	ErrUnexpectedPacket  = errors.New("error: unexpected packet")
	ErrUnexpectedBlock   = errors.New("error: unexpected block number")
	ErrOptionNegotiation = errors.New("error: option negotiation failed")

	ErrMaxRetries            = errors.New("error: hit max retries, giving up")
	ErrPacketCanNotBeSent    = errors.New("error: packet can not be sent")
	ErrCanNotSetReadTimeout  = errors.New("error: can not set read timeout")
	ErrCanNotSetWriteTimeout = errors.New("error: can not set write timeout")
	ErrSessionClosed         = errors.New("error: session closed")

	ErrInvalidOption = errors.New("error: invalid option")
	ErrInvalidConfig = errors.New("error: invalid configuration")
	ErrNotConnected  = errors.New("error: not connected, use connect <host> <port>")
	ErrUnknownCmd    = errors.New("error: unknown command")
)
