package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := UserConfigDir(".tftp-load")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tftp-load"), dir)
	assert.DirExists(t, dir)

	again, err := UserConfigDir(".tftp-load")
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}
