package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

// OAck carries the subset of proposed options the peer accepted.
type OAck struct {
	Options Options
	Opcode  OpCode
}

func NewOAck(options Options) *OAck {
	return &OAck{Opcode: OpCodeOACK, Options: options}
}

func (o *OAck) Op() OpCode { return OpCodeOACK }

func (o *OAck) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)

	if err := binary.Write(b, binary.BigEndian, OpCodeOACK); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if err := writeOptions(b, o.Options); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func (o *OAck) UnmarshalBinary(data []byte) error {
	b := bytes.NewBuffer(data)

	if err := binary.Read(b, binary.BigEndian, &o.Opcode); err != nil {
		return fmt.Errorf("error while reading opcode: %w", err)
	}

	if o.Opcode != OpCodeOACK {
		return utils.ErrWrongOpCode
	}

	options, err := readOptions(b.Bytes())
	if err != nil {
		return err
	}

	o.Options = options

	return nil
}
