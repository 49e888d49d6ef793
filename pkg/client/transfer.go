package client

import (
	"fmt"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"go.uber.org/zap"
)

type State int

const (
	StateNegotiating State = iota
	StateTransferring
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateTransferring:
		return "transferring"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TransferError reports a failed upload. Err is the underlying cause and is
// reachable with errors.Is and errors.As.
type TransferError struct {
	ID       string
	Filename string
	State    State
	Block    uint16
	Err      error
}

func (e *TransferError) Error() string {
	if e.State == StateTransferring {
		return fmt.Sprintf("put %s failed at block %d: %v", e.Filename, e.Block, e.Err)
	}

	return fmt.Sprintf("put %s failed while %s: %v", e.Filename, e.State, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// transfer is the state of one upload. It belongs to the client, not the
// session.
type transfer struct {
	l         *zap.SugaredLogger
	id        string
	filename  string
	mode      types.Mode
	options   types.Options
	payload   []byte
	started   time.Time
	state     State
	blockSize int
	requested int
	blockNum  uint16
	offset    int
	last      bool
}

// next returns the block to send after the current one and whether it is
// the short block closing the transfer. A payload that is an exact
// multiple of the block size ends with an empty block.
func (t *transfer) next() (uint16, []byte, bool) {
	n := len(t.payload) - t.offset
	short := n < t.blockSize

	if !short {
		n = t.blockSize
	}

	return t.blockNum + 1, t.payload[t.offset : t.offset+n], short
}

func (t *transfer) acked(blockNum uint16, n int, short bool) {
	t.blockNum = blockNum
	t.offset += n
	t.last = short
}

func (t *transfer) fail(err error) error {
	te := &TransferError{
		ID:       t.id,
		Filename: t.filename,
		State:    t.state,
		Err:      err,
	}

	if t.state == StateTransferring {
		te.Block = t.blockNum + 1
	}

	t.state = StateFailed

	return te
}
