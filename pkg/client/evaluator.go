package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"go.uber.org/zap"
)

var (
	putRegex     = "^put\\s+(\\S+)(?:\\s+(\\S+))?$"
	scriptRegex  = "^script\\s+(\\S+)\\s+(.+)$"
	modeRegex    = "^mode\\s+(\\S+)$"
	blksizeRegex = "^blksize\\s+(\\d+)$"
	timeoutRegex = "^timeout\\s+(\\d+)$"
	connectRegex = "^connect\\s+(\\S+)\\s+(\\d+)$"
	traceRegex   = "^trace$"
	quitRegex    = "^quit$"
	helpRegex    = "^help$"
)

const helpText = `Commands:
	connect <host> <port>
	put <local file> [remote file]
	script <remote file> <line>[;<line>...]
	mode octet|netascii
	blksize <integer>
	timeout <seconds>
	trace
	quit`

type Evaluator struct {
	l             *zap.SugaredLogger
	out           io.Writer
	dial          Dialer
	client        Connector
	line          string
	mode          types.Mode
	blockSize     int
	regexPatterns map[string]*regexp.Regexp
}

func NewEvaluator(l *zap.SugaredLogger, out io.Writer, dial Dialer, client Connector) *Evaluator {
	e := &Evaluator{
		l:      l,
		out:    out,
		dial:   dial,
		client: client,
		mode:   types.ModeOctet,
	}

	e.regexPatterns = make(map[string]*regexp.Regexp)

	e.regexPatterns["put"] = regexp.MustCompile(putRegex)
	e.regexPatterns["script"] = regexp.MustCompile(scriptRegex)
	e.regexPatterns["mode"] = regexp.MustCompile(modeRegex)
	e.regexPatterns["blksize"] = regexp.MustCompile(blksizeRegex)
	e.regexPatterns["timeout"] = regexp.MustCompile(timeoutRegex)
	e.regexPatterns["connect"] = regexp.MustCompile(connectRegex)
	e.regexPatterns["trace"] = regexp.MustCompile(traceRegex)
	e.regexPatterns["quit"] = regexp.MustCompile(quitRegex)
	e.regexPatterns["help"] = regexp.MustCompile(helpRegex)

	return e
}

func (e *Evaluator) evaluate(ctx context.Context) (bool, error) {
	e.line = strings.TrimSpace(e.line)

	if e.line == "" {
		return false, nil
	}

	if matches := e.regexPatterns["put"].FindStringSubmatch(e.line); len(matches) == 3 {
		return false, e.put(ctx, matches[1], matches[2])
	}

	if matches := e.regexPatterns["script"].FindStringSubmatch(e.line); len(matches) == 3 {
		return false, e.script(ctx, matches[1], matches[2])
	}

	if matches := e.regexPatterns["mode"].FindStringSubmatch(e.line); len(matches) == 2 {
		mode, err := types.ParseMode(matches[1])
		if err != nil {
			return false, err
		}

		e.mode = mode

		return false, nil
	}

	if matches := e.regexPatterns["blksize"].FindStringSubmatch(e.line); len(matches) == 2 {
		n, err := strconv.Atoi(matches[1])
		if err != nil || n < types.MinBlockSize || n > types.MaxBlockSize {
			return false, fmt.Errorf("%w: blksize must be within [%d, %d]", utils.ErrInvalidOption, types.MinBlockSize, types.MaxBlockSize)
		}

		e.blockSize = n

		return false, nil
	}

	if matches := e.regexPatterns["timeout"].FindStringSubmatch(e.line); len(matches) == 2 {
		n, err := strconv.ParseUint(matches[1], 10, 32)
		if err != nil || n == 0 {
			return false, fmt.Errorf("timeout value can not be parsed: %s", matches[1])
		}

		if e.client == nil {
			return false, utils.ErrNotConnected
		}

		e.client.SetTimeout(time.Duration(n) * time.Second)

		return false, nil
	}

	if matches := e.regexPatterns["connect"].FindStringSubmatch(e.line); len(matches) == 3 {
		return false, e.connect(matches[1], matches[2])
	}

	if matches := e.regexPatterns["trace"].FindStringSubmatch(e.line); len(matches) == 1 {
		if e.client == nil {
			return false, utils.ErrNotConnected
		}

		e.client.SetTrace()

		return false, nil
	}

	if matches := e.regexPatterns["help"].FindStringSubmatch(e.line); len(matches) == 1 {
		fmt.Fprintln(e.out, helpText)

		return false, nil
	}

	if matches := e.regexPatterns["quit"].FindStringSubmatch(e.line); len(matches) == 1 {
		return true, nil
	}

	return false, fmt.Errorf("%w: %s", utils.ErrUnknownCmd, e.line)
}

func (e *Evaluator) connect(host, port string) error {
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: port %s", utils.ErrInvalidOption, port)
	}

	c, err := e.dial(host, p)
	if err != nil {
		return err
	}

	e.close()
	e.client = c

	return nil
}

func (e *Evaluator) put(ctx context.Context, local, remote string) error {
	if e.client == nil {
		return utils.ErrNotConnected
	}

	payload, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("error while reading %s: %w", local, err)
	}

	if remote == "" {
		remote = filepath.Base(local)
	}

	if e.mode == types.ModeNetascii {
		payload = types.ToNetascii(payload)
	}

	var opts types.Options
	if e.blockSize > 0 {
		opts = opts.Set(types.OptBlockSize, e.blockSize)
	}

	// tsize is advisory, the end of the upload is still the short block.
	opts = opts.Set(types.OptTransferSize, 0)

	start := time.Now()

	if err := e.client.Put(ctx, remote, e.mode, payload, opts); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "sent %d bytes in %s\n", len(payload), time.Since(start).Round(time.Millisecond))

	return nil
}

// script uploads text as a netascii script, with ';' separating lines.
func (e *Evaluator) script(ctx context.Context, remote, text string) error {
	if e.client == nil {
		return utils.ErrNotConnected
	}

	lines := strings.Split(text, ";")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	return e.client.PutScript(ctx, remote, strings.Join(lines, "\n")+"\n")
}

func (e *Evaluator) close() {
	if e.client == nil {
		return
	}

	if err := e.client.Close(); err != nil {
		e.l.Errorf("error while closing connection: %s", err.Error())
	}

	e.client = nil
}
