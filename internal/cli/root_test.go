package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/Wa4h1h/go-tftp-loader/internal/tftptest"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startServer(t *testing.T) *tftptest.Server {
	t.Helper()

	srv, err := tftptest.NewServer(zaptest.NewLogger(t).Sugar(), tftptest.Behavior{})
	require.NoError(t, err)

	go func() { _ = srv.ListenAndServe() }()

	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())

	out := &bytes.Buffer{}

	cmd := NewRootCommand(zaptest.NewLogger(t).Sugar(), "info", "")
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(out)

	err := cmd.Execute()

	return out.String(), err
}

func TestLoadCommandRunsPlan(t *testing.T) {
	srv := startServer(t)

	image := bytes.Repeat([]byte{0xa5}, 1300)
	path := filepath.Join(t.TempDir(), "app.bin")
	require.NoError(t, os.WriteFile(path, image, 0o600))

	_, err := execute(t, "",
		"--host", srv.Host(),
		"--port", strconv.Itoa(srv.Port()),
		"--timeout", "200ms",
		"-a", "0x20000000",
		"--blksize", "512",
		"-e", "-n", "-q", "--stats",
		path,
	)
	require.NoError(t, err)

	ups := srv.Uploads()
	require.Len(t, ups, 4)

	assert.Equal(t, "script", ups[0].Filename)
	assert.Equal(t, types.ModeNetascii, ups[0].Mode)
	assert.Equal(t, []byte("connect\r\n halt\r\n"), ups[0].Data)

	assert.Equal(t, []byte("erase 0x20000000 1300\r\n"), ups[1].Data)

	assert.Equal(t, "0x20000000", ups[2].Filename)
	assert.Equal(t, types.ModeOctet, ups[2].Mode)
	assert.Equal(t, 512, ups[2].BlockSize)
	assert.Equal(t, image, ups[2].Data)

	assert.Equal(t, []byte("release\r\nnrst\r\nconnect\r\n"), ups[3].Data)

	for _, up := range ups {
		assert.True(t, up.Complete)
	}
}

func TestLoadCommandMissingFile(t *testing.T) {
	_, err := execute(t, "", "--host", "127.0.0.1", filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't open file")
}

func TestLoadCommandRequiresOneFile(t *testing.T) {
	_, err := execute(t, "", "--host", "127.0.0.1")
	require.Error(t, err)
}

func TestShellCommand(t *testing.T) {
	srv := startServer(t)

	out, err := execute(t, "script script rst;run\nquit\n",
		"--host", srv.Host(),
		"--port", strconv.Itoa(srv.Port()),
		"--timeout", "1",
		"shell",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "tftp> ")

	ups := srv.Uploads()
	require.Len(t, ups, 1)
	assert.Equal(t, []byte("rst\r\nrun\r\n"), ups[0].Data)
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestHelpKeepsHostShorthand(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "-h, --host")
	assert.Contains(t, out, "--help")

	out, err = execute(t, "", "shell", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Interactive upload shell")
}
