package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/pin/tftp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	filename string
	data     []byte
}

// startReferenceServer runs an independent TFTP implementation on
// loopback and reports every completed write on the returned channel.
func startReferenceServer(t *testing.T) (*net.UDPAddr, <-chan received) {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	done := make(chan received, 4)

	s := tftp.NewServer(nil, func(filename string, wt io.WriterTo) error {
		var buf bytes.Buffer
		if _, err := wt.WriteTo(&buf); err != nil {
			return err
		}

		done <- received{filename: filename, data: buf.Bytes()}

		return nil
	})
	s.SetTimeout(time.Second)

	go func() { _ = s.Serve(conn) }()

	t.Cleanup(s.Shutdown)

	return conn.LocalAddr().(*net.UDPAddr), done
}

func TestPutInteropsWithReferenceServer(t *testing.T) {
	addr, done := startReferenceServer(t)

	c, err := NewClient(zaptest.NewLogger(t).Sugar(), addr.IP.String(), WithPort(addr.Port), WithTimeout(500*time.Millisecond))
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	tests := []struct {
		name    string
		size    int
		options types.Options
	}{
		{name: "plain", size: 1500},
		{name: "exact multiple", size: 1024},
		{name: "empty", size: 0},
		{name: "blksize", size: 5000, options: blksize(1216)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := payloadOf(tt.size)

			require.NoError(t, c.Put(context.Background(), "0x08000000", types.ModeOctet, payload, tt.options))

			select {
			case got := <-done:
				assert.Equal(t, "0x08000000", got.filename)
				assert.Equal(t, len(payload), len(got.data))
				assert.True(t, bytes.Equal(payload, got.data))
			case <-time.After(2 * time.Second):
				t.Fatal("reference server never completed the write")
			}
		})
	}
}
