package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

// Error is the ERROR packet. It also satisfies the error interface so a
// decoded peer error can travel up the call stack unchanged.
type Error struct {
	ErrMsg    string
	ErrorCode ErrCode
	Opcode    OpCode
}

func NewError(code ErrCode, msg string) *Error {
	if msg == "" {
		msg = code.Message()
	}

	return &Error{Opcode: OpCodeError, ErrorCode: code, ErrMsg: msg}
}

func (e *Error) Op() OpCode { return OpCodeError }

func (e *Error) Error() string {
	return fmt.Sprintf("tftp error: %d - '%s'", e.ErrorCode, e.ErrMsg)
}

// Is matches another *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.ErrorCode == e.ErrorCode
}

func (e *Error) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	errLength := 2 + 2 + len(e.ErrMsg) + 1
	b.Grow(errLength)

	if err := binary.Write(b, binary.BigEndian, OpCodeError); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if err := binary.Write(b, binary.BigEndian, &e.ErrorCode); err != nil {
		return nil, fmt.Errorf("error while writing error code: %w", err)
	}

	if _, err := b.WriteString(e.ErrMsg); err != nil {
		return nil, fmt.Errorf("error while writing error message: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte: %w", err)
	}

	return b.Bytes(), nil
}

// UnmarshalBinary accepts both the bare 4 byte form, where the message
// comes from the standard table, and the form carrying peer text.
func (e *Error) UnmarshalBinary(data []byte) error {
	b := bytes.NewBuffer(data)

	if err := binary.Read(b, binary.BigEndian, &e.Opcode); err != nil {
		return fmt.Errorf("error while reading opcode: %w", err)
	}

	if e.Opcode != OpCodeError {
		return utils.ErrWrongOpCode
	}

	if err := binary.Read(b, binary.BigEndian, &e.ErrorCode); err != nil {
		return fmt.Errorf("error while reading error code: %w", err)
	}

	msg := b.Bytes()
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	e.ErrMsg = string(msg)
	if e.ErrMsg == "" {
		e.ErrMsg = e.ErrorCode.Message()
	}

	return nil
}
