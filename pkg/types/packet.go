package types

import (
	"encoding"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

// Packet is implemented by every TFTP packet kind.
type Packet interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Op() OpCode
}

var constructors = map[OpCode]func() Packet{
	OpCodeRRQ:   func() Packet { return &Request{Opcode: OpCodeRRQ} },
	OpCodeWRQ:   func() Packet { return &Request{Opcode: OpCodeWRQ} },
	OpCodeDATA:  func() Packet { return &Data{Opcode: OpCodeDATA} },
	OpCodeACK:   func() Packet { return &Ack{Opcode: OpCodeACK} },
	OpCodeError: func() Packet { return &Error{Opcode: OpCodeError} },
	OpCodeOACK:  func() Packet { return &OAck{Opcode: OpCodeOACK} },
}

// Parse decodes a datagram into its packet. A well formed ERROR packet is
// returned as the error, never as a packet.
func Parse(datagram []byte) (Packet, error) {
	if len(datagram) < 2 {
		return nil, utils.ErrPacketTooShort
	}

	op := OpCode(binary.BigEndian.Uint16(datagram))

	newPacket, ok := constructors[op]
	if !ok {
		return nil, fmt.Errorf("%w: %d", utils.ErrUnknownOpCode, uint16(op))
	}

	p := newPacket()
	if err := p.UnmarshalBinary(datagram); err != nil {
		return nil, fmt.Errorf("error while decoding %s packet: %w", op, err)
	}

	if e, ok := p.(*Error); ok {
		return nil, e
	}

	return p, nil
}
