package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

// Request is a RRQ or WRQ. Options are the RFC 2347 extensions proposed by
// the client; when empty nothing follows the mode field.
type Request struct {
	Filename string
	Mode     Mode
	Options  Options
	Opcode   OpCode
}

func NewWriteRequest(filename string, mode Mode, options Options) *Request {
	return &Request{Opcode: OpCodeWRQ, Filename: filename, Mode: mode, Options: options}
}

func (r *Request) Op() OpCode { return r.Opcode }

func (r *Request) MarshalBinary() ([]byte, error) {
	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return nil, utils.ErrWrongOpCode
	}

	if _, err := ParseMode(string(r.Mode)); err != nil {
		return nil, err
	}

	b := new(bytes.Buffer)
	rqLen := 2 + len(r.Filename) + 1 + len(r.Mode) + 1

	b.Grow(rqLen)

	if err := binary.Write(b, binary.BigEndian, &r.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing Opcode: %w", err)
	}

	if _, err := b.WriteString(r.Filename); err != nil {
		return nil, fmt.Errorf("error while writing filename: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after filename: %w", err)
	}

	if _, err := b.WriteString(string(r.Mode)); err != nil {
		return nil, fmt.Errorf("error while writing mode: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after mode: %w", err)
	}

	if err := writeOptions(b, r.Options); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	var err error

	rd := bytes.NewBuffer(data)

	err = binary.Read(rd, binary.BigEndian, &r.Opcode)
	if err != nil {
		return fmt.Errorf("error while decoding opCode: %w", err)
	}

	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return utils.ErrWrongOpCode
	}

	r.Filename, err = rd.ReadString(0)
	if err != nil {
		return fmt.Errorf("error while decoding filename: %w", err)
	}

	r.Filename = strings.TrimRight(r.Filename, string(byte(0)))

	mode, err := rd.ReadString(0)
	if err != nil {
		return fmt.Errorf("error while decoding mode: %w", err)
	}

	r.Mode, err = ParseMode(strings.TrimRight(mode, string(byte(0))))
	if err != nil {
		return err
	}

	r.Options, err = readOptions(rd.Bytes())
	if err != nil {
		return err
	}

	return nil
}

func writeOptions(b *bytes.Buffer, options Options) error {
	for _, opt := range options {
		if opt.Name == "" {
			return fmt.Errorf("%w: empty option name", utils.ErrInvalidOption)
		}

		for _, s := range []string{opt.Name, opt.Value} {
			if _, err := b.WriteString(s); err != nil {
				return fmt.Errorf("error while writing option %s: %w", opt.Name, err)
			}

			if err := b.WriteByte(0); err != nil {
				return fmt.Errorf("error while writing null byte after option %s: %w", opt.Name, err)
			}
		}
	}

	return nil
}

// readOptions splits a section of NUL terminated name/value tokens.
func readOptions(section []byte) (Options, error) {
	if len(section) == 0 {
		return nil, nil
	}

	if section[len(section)-1] != 0 {
		return nil, fmt.Errorf("%w: unterminated trailing token", utils.ErrMalformedOptions)
	}

	tokens := strings.Split(string(section[:len(section)-1]), string(byte(0)))
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("%w: option %q has no value", utils.ErrMalformedOptions, tokens[len(tokens)-1])
	}

	options := make(Options, 0, len(tokens)/2)

	for i := 0; i < len(tokens); i += 2 {
		if tokens[i] == "" {
			return nil, fmt.Errorf("%w: empty option name", utils.ErrMalformedOptions)
		}

		options = append(options, Option{Name: tokens[i], Value: tokens[i+1]})
	}

	return options, nil
}
