package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type putCall struct {
	filename string
	mode     types.Mode
	payload  []byte
	options  types.Options
}

type fakeConnector struct {
	puts    []putCall
	scripts map[string]string
	timeout time.Duration
	trace   bool
	closed  bool
	err     error
}

func (f *fakeConnector) Put(_ context.Context, filename string, mode types.Mode, payload []byte, options types.Options) error {
	f.puts = append(f.puts, putCall{filename: filename, mode: mode, payload: payload, options: options})

	return f.err
}

func (f *fakeConnector) PutScript(_ context.Context, filename string, script string) error {
	if f.scripts == nil {
		f.scripts = make(map[string]string)
	}

	f.scripts[filename] = script

	return f.err
}

func (f *fakeConnector) SetTimeout(timeout time.Duration) { f.timeout = timeout }

func (f *fakeConnector) Timeout() time.Duration { return f.timeout }

func (f *fakeConnector) SetTrace() { f.trace = !f.trace }

func (f *fakeConnector) Close() error {
	f.closed = true

	return nil
}

func newTestEvaluator(t *testing.T, conn Connector) (*Evaluator, *bytes.Buffer, *[]string) {
	t.Helper()

	var dialed []string

	out := &bytes.Buffer{}
	dial := func(host string, port int) (Connector, error) {
		dialed = append(dialed, host+":"+strconv.Itoa(port))

		return &fakeConnector{}, nil
	}

	return NewEvaluator(zaptest.NewLogger(t).Sugar(), out, dial, conn), out, &dialed
}

func run(t *testing.T, e *Evaluator, line string) (bool, error) {
	t.Helper()

	e.line = line

	return e.evaluate(context.Background())
}

func TestEvaluatorPutReadsLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmware.bin")
	require.NoError(t, os.WriteFile(path, []byte("image"), 0o600))

	fc := &fakeConnector{}
	e, out, _ := newTestEvaluator(t, fc)

	_, err := run(t, e, "put "+path)
	require.NoError(t, err)

	_, err = run(t, e, "blksize 1216")
	require.NoError(t, err)

	_, err = run(t, e, "put "+path+" 0x08000000")
	require.NoError(t, err)

	require.Len(t, fc.puts, 2)
	assert.Equal(t, putCall{
		filename: "firmware.bin",
		mode:     types.ModeOctet,
		payload:  []byte("image"),
		options:  types.Options{{Name: "tsize", Value: "0"}},
	}, fc.puts[0])
	assert.Equal(t, "0x08000000", fc.puts[1].filename)
	assert.Equal(t, types.Options{{Name: "blksize", Value: "1216"}, {Name: "tsize", Value: "0"}}, fc.puts[1].options)
	assert.Contains(t, out.String(), "sent 5 bytes")
}

func TestEvaluatorPutNetasciiConvertsLineEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("rst\nhalt\n"), 0o600))

	fc := &fakeConnector{}
	e, _, _ := newTestEvaluator(t, fc)

	_, err := run(t, e, "mode NETASCII")
	require.NoError(t, err)

	_, err = run(t, e, "put "+path+" script")
	require.NoError(t, err)

	require.Len(t, fc.puts, 1)
	assert.Equal(t, types.ModeNetascii, fc.puts[0].mode)
	assert.Equal(t, []byte("rst\r\nhalt\r\n"), fc.puts[0].payload)
}

func TestEvaluatorScript(t *testing.T) {
	fc := &fakeConnector{}
	e, _, _ := newTestEvaluator(t, fc)

	_, err := run(t, e, "script script connect; halt ;nrst")
	require.NoError(t, err)

	assert.Equal(t, "connect\nhalt\nnrst\n", fc.scripts["script"])
}

func TestEvaluatorRequiresConnection(t *testing.T) {
	e, _, _ := newTestEvaluator(t, nil)

	for _, line := range []string{"put a.bin", "script script rst", "timeout 3", "trace"} {
		_, err := run(t, e, line)
		assert.ErrorIs(t, err, utils.ErrNotConnected, line)
	}
}

func TestEvaluatorConnectReplacesClient(t *testing.T) {
	old := &fakeConnector{}
	e, _, dialed := newTestEvaluator(t, old)

	_, err := run(t, e, "connect 192.168.10.50 69")
	require.NoError(t, err)

	assert.True(t, old.closed)
	assert.Equal(t, []string{"192.168.10.50:69"}, *dialed)
	assert.NotSame(t, old, e.client)

	_, err = run(t, e, "connect 192.168.10.50 70000")
	assert.ErrorIs(t, err, utils.ErrInvalidOption)
}

func TestEvaluatorSettings(t *testing.T) {
	fc := &fakeConnector{}
	e, out, _ := newTestEvaluator(t, fc)

	_, err := run(t, e, "timeout 5")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, fc.timeout)

	_, err = run(t, e, "trace")
	require.NoError(t, err)
	assert.True(t, fc.trace)

	_, err = run(t, e, "blksize 4")
	assert.ErrorIs(t, err, utils.ErrInvalidOption)

	_, err = run(t, e, "mode mail")
	assert.ErrorIs(t, err, utils.ErrInvalidMode)

	_, err = run(t, e, "get file")
	assert.ErrorIs(t, err, utils.ErrUnknownCmd)

	_, err = run(t, e, "help")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "connect <host> <port>")

	done, err := run(t, e, "quit")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCliReadStopsAtQuit(t *testing.T) {
	fc := &fakeConnector{}
	in := strings.NewReader("script script rst\nquit\nscript script halt\n")
	out := &bytes.Buffer{}

	c := NewCli(zaptest.NewLogger(t).Sugar(), in, out, nil, fc)
	require.NoError(t, c.Read(context.Background()))

	assert.Equal(t, map[string]string{"script": "rst\n"}, fc.scripts)
	assert.True(t, fc.closed)
	assert.Equal(t, 2, strings.Count(out.String(), "tftp> "))
}
