package types

import (
	"fmt"
	"strings"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

type OpCode uint16

const (
	OpCodeRRQ OpCode = iota + 1
	OpCodeWRQ
	OpCodeDATA
	OpCodeACK
	OpCodeError
	OpCodeOACK
)

func (o OpCode) String() string {
	switch o {
	case OpCodeRRQ:
		return "RRQ"
	case OpCodeWRQ:
		return "WRQ"
	case OpCodeDATA:
		return "DATA"
	case OpCodeACK:
		return "ACK"
	case OpCodeError:
		return "ERROR"
	case OpCodeOACK:
		return "OACK"
	default:
		return fmt.Sprintf("OpCode(%d)", uint16(o))
	}
}

type ErrCode uint16

const (
	ErrNotDefined ErrCode = iota
	ErrFileNotFound
	ErrAccessViolation
	ErrDiskFull
	ErrIllegalTftpOp
	ErrUnknownTransferId
	ErrFileAlreadyExists
	ErrNoSuchUser
	ErrOptionNegotiation
)

var errMessages = map[ErrCode]string{
	ErrFileNotFound:      "File not found",
	ErrAccessViolation:   "Access violation",
	ErrDiskFull:          "Disk full or allocation exceeded",
	ErrIllegalTftpOp:     "Illegal TFTP operation",
	ErrUnknownTransferId: "Unknown transfer ID",
	ErrFileAlreadyExists: "File already exists",
	ErrNoSuchUser:        "No such user",
	ErrOptionNegotiation: "Failed to negotiate options",
}

// Message returns the standard text for the error code.
func (c ErrCode) Message() string {
	if msg, ok := errMessages[c]; ok {
		return msg
	}

	return "Not defined, see error message"
}

type Mode string

const (
	ModeNetascii Mode = "netascii"
	ModeOctet    Mode = "octet"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeNetascii, ModeOctet:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", utils.ErrInvalidMode, s)
	}
}

const (
	OptBlockSize    = "blksize"
	OptTransferSize = "tsize"
)

const (
	MinBlockSize     = 8
	DefaultBlockSize = 512
	MaxBlockSize     = 65536
	MaxDatagramSize  = MaxBlockSize + 4
	DefaultPort      = 69
	DefaultRetries   = 5
)
