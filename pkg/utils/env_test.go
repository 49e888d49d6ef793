package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TFTP_TEST_UINT", "7")
	t.Setenv("TFTP_TEST_INT", "-3")
	t.Setenv("TFTP_TEST_BOOL", "true")
	t.Setenv("TFTP_TEST_DURATION", "1500ms")

	assert.Equal(t, uint(7), GetEnv[uint]("TFTP_TEST_UINT", "0", false))
	assert.Equal(t, -3, GetEnv[int]("TFTP_TEST_INT", "0", false))
	assert.True(t, GetEnv[bool]("TFTP_TEST_BOOL", "false", false))
	assert.Equal(t, 1500*time.Millisecond, GetEnv[time.Duration]("TFTP_TEST_DURATION", "1s", false))
	assert.Equal(t, "fallback", GetEnv[string]("TFTP_TEST_MISSING", "fallback", false))
}

func TestGetEnvPanics(t *testing.T) {
	t.Setenv("TFTP_TEST_BAD", "nope")

	require.Panics(t, func() { GetEnv[uint]("TFTP_TEST_BAD", "0", false) })
	require.Panics(t, func() { GetEnv[string]("TFTP_TEST_REQUIRED_MISSING", "", true) })
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	l := NewLogger("chatty")
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(-1))
}
