package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// UserConfigDir returns $HOME/<name>, creating it on first use.
func UserConfigDir(name string) (string, error) {
	p, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error while getting user home dir: %w", err)
	}

	dir := filepath.Join(p, name)

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("error while checking config dir exists: %w", err)
		}

		if err := os.Mkdir(dir, 0o750); err != nil {
			return "", fmt.Errorf("error while creating config dir: %w", err)
		}
	}

	return dir, nil
}
