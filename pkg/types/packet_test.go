package types

import (
	"testing"

	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRequestExactBytes(t *testing.T) {
	wrq := NewWriteRequest("script", ModeNetascii, Options{
		NewOption(OptBlockSize, 1216),
		NewOption(OptTransferSize, 0),
	})

	got, err := wrq.MarshalBinary()
	require.NoError(t, err)

	expected := []byte{0x00, 0x02}
	expected = append(expected, "script\x00netascii\x00blksize\x001216\x00tsize\x000\x00"...)

	assert.Equal(t, expected, got)
}

func TestWriteRequestWithoutOptions(t *testing.T) {
	got, err := NewWriteRequest("0x08000000", ModeOctet, nil).MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, append([]byte{0x00, 0x02}, "0x08000000\x00octet\x00"...), got)
}

func TestWriteRequestRejectsUnknownMode(t *testing.T) {
	_, err := NewWriteRequest("f", Mode("mail"), nil).MarshalBinary()
	require.ErrorIs(t, err, utils.ErrInvalidMode)
}

func TestRequestRoundTrip(t *testing.T) {
	for _, op := range []OpCode{OpCodeRRQ, OpCodeWRQ} {
		in := &Request{
			Opcode:   op,
			Filename: "image.bin",
			Mode:     ModeOctet,
			Options:  Options{{Name: "blksize", Value: "1428"}, {Name: "timeout", Value: "3"}},
		}

		b, err := in.MarshalBinary()
		require.NoError(t, err)

		var out Request
		require.NoError(t, out.UnmarshalBinary(b))
		assert.Equal(t, *in, out)
	}
}

func TestDataExactBytesAndRoundTrip(t *testing.T) {
	in := NewData(0x0102, []byte{0xde, 0xad})

	b, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 0x01, 0x02, 0xde, 0xad}, b)

	var out Data
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, OpCodeDATA, out.Opcode)
	assert.Equal(t, uint16(0x0102), out.BlockNum)
	assert.Equal(t, []byte{0xde, 0xad}, out.Payload)
}

func TestDataEmptyPayload(t *testing.T) {
	b, err := NewData(3, nil).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x03}, b)

	var out Data
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Empty(t, out.Payload)
}

func TestDataPayloadTooBig(t *testing.T) {
	_, err := NewData(1, make([]byte, MaxBlockSize+1)).MarshalBinary()
	require.ErrorIs(t, err, utils.ErrDataPayloadTooBig)
}

func TestAckRoundTrip(t *testing.T) {
	b, err := NewAck(65535).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x04, 0xff, 0xff}, b)

	var out Ack
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, *NewAck(65535), out)
}

func TestAckWrongOpCode(t *testing.T) {
	var out Ack
	require.ErrorIs(t, out.UnmarshalBinary([]byte{0x00, 0x03, 0x00, 0x01}), utils.ErrWrongOpCode)
}

func TestErrorCodeOnlyUsesStandardMessage(t *testing.T) {
	tests := map[ErrCode]string{
		ErrFileNotFound:      "File not found",
		ErrAccessViolation:   "Access violation",
		ErrDiskFull:          "Disk full or allocation exceeded",
		ErrIllegalTftpOp:     "Illegal TFTP operation",
		ErrUnknownTransferId: "Unknown transfer ID",
		ErrFileAlreadyExists: "File already exists",
		ErrNoSuchUser:        "No such user",
		ErrOptionNegotiation: "Failed to negotiate options",
	}

	for code, msg := range tests {
		var out Error
		require.NoError(t, out.UnmarshalBinary([]byte{0x00, 0x05, 0x00, byte(code)}))
		assert.Equal(t, code, out.ErrorCode)
		assert.Equal(t, msg, out.ErrMsg)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	in := NewError(ErrAccessViolation, "flash is locked")

	b, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x00, 0x05, 0x00, 0x02}, "flash is locked\x00"...), b)

	var out Error
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, *in, out)
	assert.Equal(t, "tftp error: 2 - 'flash is locked'", out.Error())
}

func TestErrorMissingTerminator(t *testing.T) {
	var out Error
	require.NoError(t, out.UnmarshalBinary(append([]byte{0x00, 0x05, 0x00, 0x00}, "busy"...)))
	assert.Equal(t, "busy", out.ErrMsg)
}

func TestOAckRoundTrip(t *testing.T) {
	in := NewOAck(Options{{Name: "blksize", Value: "1216"}, {Name: "tsize", Value: "4096"}})

	b, err := in.MarshalBinary()
	require.NoError(t, err)

	var out OAck
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, *in, out)
}

func TestOAckEmptySection(t *testing.T) {
	var out OAck
	require.NoError(t, out.UnmarshalBinary([]byte{0x00, 0x06}))
	assert.Empty(t, out.Options)
}

func TestOAckMalformed(t *testing.T) {
	tests := map[string][]byte{
		"unterminated value": append([]byte{0x00, 0x06}, "blksize\x00512"...),
		"missing value":      append([]byte{0x00, 0x06}, "blksize\x00"...),
		"empty name":         append([]byte{0x00, 0x06}, "\x00512\x00"...),
	}

	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			var out OAck
			require.ErrorIs(t, out.UnmarshalBinary(b), utils.ErrMalformedOptions)
		})
	}
}

func TestOptions(t *testing.T) {
	opts := Options{NewOption("BlkSize", uint16(1024)), NewOption("tsize", int64(0))}

	v, ok := opts.Get("blksize")
	require.True(t, ok)
	assert.Equal(t, "1024", v)

	n, ok, err := opts.Int("TSIZE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, n)

	opts = opts.Set("blksize", 512).Set("timeout", 2)
	assert.Equal(t, "BlkSize=512 tsize=0 timeout=2", opts.String())

	_, _, err = Options{{Name: "blksize", Value: "big"}}.Int("blksize")
	require.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("OCTET")
	require.NoError(t, err)
	assert.Equal(t, ModeOctet, m)

	_, err = ParseMode("mail")
	require.ErrorIs(t, err, utils.ErrInvalidMode)
}

func TestToNetascii(t *testing.T) {
	assert.Equal(t, []byte("rst\r\nrun\r\n"), ToNetascii([]byte("rst\nrun\n")))
}
