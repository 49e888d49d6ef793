package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/metrics"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Connector interface {
	Put(ctx context.Context, filename string, mode types.Mode, payload []byte, options types.Options) error
	PutScript(ctx context.Context, filename string, script string) error
	SetTimeout(timeout time.Duration)
	Timeout() time.Duration
	SetTrace()
	Close() error
}

type Client struct {
	session *Session
	l       *zap.SugaredLogger
	metrics *metrics.Collector
	cfg     Config
	trace   bool
}

// NewClient resolves host and opens the session socket. Get is not
// supported: this client only uploads.
func NewClient(l *zap.SugaredLogger, host string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Host = host

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector("")
	}

	s, err := NewSession(l, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{session: s, l: l, metrics: cfg.Metrics, cfg: cfg}, nil
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.session.SetTimeout(timeout)
}

func (c *Client) Timeout() time.Duration {
	return c.session.Timeout()
}

// SetTrace toggles per block debug logging.
func (c *Client) SetTrace() {
	c.trace = !c.trace
}

func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Close() error {
	return c.session.Close()
}

// PutScript uploads a line oriented command script in netascii mode.
func (c *Client) PutScript(ctx context.Context, filename string, script string) error {
	return c.Put(ctx, filename, types.ModeNetascii, types.ToNetascii([]byte(script)), nil)
}

// Put uploads payload as filename. The session is pinned to the server's
// transfer port after the first reply and released when Put returns,
// whatever the outcome.
func (c *Client) Put(ctx context.Context, filename string, mode types.Mode, payload []byte, options types.Options) (err error) {
	t := &transfer{
		id:        uuid.NewString(),
		filename:  filename,
		mode:      mode,
		options:   options,
		payload:   payload,
		started:   time.Now(),
		state:     StateNegotiating,
		blockSize: c.cfg.DefaultBlockSize,
	}
	t.l = c.l.With("transfer", t.id, "file", filename)

	defer func() {
		c.session.Disconnect()

		result := "ok"
		if err != nil {
			result = "failed"
			t.l.Errorf("upload failed: %s", err.Error())
		}

		c.metrics.TransferFinished(result, time.Since(t.started))
	}()

	if err := c.checkRequest(t); err != nil {
		return t.fail(err)
	}

	if err := c.negotiate(ctx, t); err != nil {
		if errors.Is(err, utils.ErrOptionNegotiation) {
			c.reject(t, types.NewError(types.ErrOptionNegotiation, ""))
		}

		return t.fail(err)
	}

	c.session.Connect()
	t.state = StateTransferring

	t.l.Debugf("negotiated blksize=%d, %s", t.blockSize, c.session.Binding())

	for !t.last {
		if err := c.sendBlock(ctx, t); err != nil {
			return t.fail(err)
		}
	}

	t.state = StateDone

	t.l.Debugf("sent %d blocks, sent %d bytes in %s", t.blockNum, t.offset, time.Since(t.started))

	return nil
}

// checkRequest rejects bad usage before anything goes on the wire.
func (c *Client) checkRequest(t *transfer) error {
	if _, err := types.ParseMode(string(t.mode)); err != nil {
		return err
	}

	size, ok, err := t.options.Int(types.OptBlockSize)
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrInvalidOption, err)
	}

	if ok {
		if size < c.cfg.MinBlockSize || size > c.cfg.MaxBlockSize {
			return fmt.Errorf("%w: invalid blksize: %d", utils.ErrInvalidOption, size)
		}

		t.requested = size
	}

	return nil
}

func (c *Client) negotiate(ctx context.Context, t *transfer) error {
	wrq := types.NewWriteRequest(t.filename, t.mode, t.options)

	t.l.Debugf("WRQ mode=%s options=[%s]", t.mode, t.options)

	reply, err := c.session.Cycle(ctx, wrq)
	if err != nil {
		return err
	}

	switch p := reply.(type) {
	case *types.OAck:
		if len(t.options) == 0 {
			return fmt.Errorf("%w: OACK to a WRQ without options", utils.ErrOptionNegotiation)
		}

		size, ok, err := p.Options.Int(types.OptBlockSize)
		if err != nil {
			return fmt.Errorf("%w: %w", utils.ErrOptionNegotiation, err)
		}

		if !ok {
			return nil
		}

		limit := c.cfg.MaxBlockSize
		if t.requested > 0 {
			limit = t.requested
		}

		if size < c.cfg.MinBlockSize || size > limit {
			return fmt.Errorf("%w: server blksize %d outside [%d, %d]", utils.ErrOptionNegotiation, size, c.cfg.MinBlockSize, limit)
		}

		t.blockSize = size
	case *types.Ack:
		if p.BlockNum != 0 {
			return fmt.Errorf("%w: got ack %d for WRQ", utils.ErrUnexpectedBlock, p.BlockNum)
		}
	default:
		return fmt.Errorf("%w: %s in reply to WRQ", utils.ErrUnexpectedPacket, reply.Op())
	}

	return nil
}

// sendBlock sends the next DATA block and checks its acknowledgement.
// A mismatching block number ends the transfer; nothing is resent.
func (c *Client) sendBlock(ctx context.Context, t *transfer) error {
	blockNum, block, short := t.next()

	reply, err := c.session.Cycle(ctx, types.NewData(blockNum, block))
	if err != nil {
		return err
	}

	ack, ok := reply.(*types.Ack)
	if !ok {
		return fmt.Errorf("%w: %s in reply to DATA", utils.ErrUnexpectedPacket, reply.Op())
	}

	if ack.BlockNum != blockNum {
		return fmt.Errorf("%w: got ack %d for block %d", utils.ErrUnexpectedBlock, ack.BlockNum, blockNum)
	}

	t.acked(blockNum, len(block), short)
	c.metrics.BytesSent(len(block))

	if c.trace {
		t.l.Debugf("sent block#=%d, sent #bytes=%d", blockNum, len(block))
	}

	if c.cfg.Progress != nil {
		c.cfg.Progress(Progress{
			Filename:  t.filename,
			BlockNum:  blockNum,
			BytesSent: t.offset,
			Total:     len(t.payload),
			Elapsed:   time.Since(t.started),
		})
	}

	return nil
}

// reject tells the server's transfer port why the exchange is abandoned.
func (c *Client) reject(t *transfer, e *types.Error) {
	c.session.Connect()

	if err := c.session.Send(e); err != nil {
		t.l.Debugf("error while sending %s: %s", e.Op(), err.Error())
	}
}
