package client

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Dialer opens a Connector to host:port for the connect command.
type Dialer func(host string, port int) (Connector, error)

type Cli struct {
	l    *zap.SugaredLogger
	in   io.Reader
	out  io.Writer
	dial Dialer
	conn Connector
}

// NewCli builds the interactive shell. conn may be nil, in which case
// uploads fail until connect succeeds.
func NewCli(l *zap.SugaredLogger, in io.Reader, out io.Writer, dial Dialer, conn Connector) *Cli {
	return &Cli{l: l, in: in, out: out, dial: dial, conn: conn}
}

func (c *Cli) Read(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	evaluator := NewEvaluator(c.l, c.out, c.dial, c.conn)

	defer evaluator.close()

	fmt.Fprint(c.out, "tftp> ")

	for scanner.Scan() {
		evaluator.line = scanner.Text()

		done, err := evaluator.evaluate(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "%s\n", err.Error())
		}

		if done || ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(c.out, "tftp> ")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error while reading commands: %w", err)
	}

	return nil
}
