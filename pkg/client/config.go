package client

import (
	"fmt"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/metrics"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
)

const DefaultTimeout = 2 * time.Second

// Progress is reported after every acknowledged DATA block.
type Progress struct {
	Filename  string
	BlockNum  uint16
	BytesSent int
	Total     int
	Elapsed   time.Duration
}

type ProgressCallback func(Progress)

// Config holds everything a Session needs. Use DefaultConfig and adjust.
type Config struct {
	// Host is the TFTP server name or address, resolved once.
	Host string

	// Port is the well known server port. Default 69.
	Port int

	// Timeout bounds every wait for a reply. Default 2s.
	Timeout time.Duration

	// Retries is how many times a packet is resent after a timeout
	// before giving up. Default 5.
	Retries int

	// Block size bounds accepted for the blksize option, and the size
	// used when the server does not negotiate. Defaults 8, 512, 65536.
	MinBlockSize     int
	DefaultBlockSize int
	MaxBlockSize     int

	// TOS sets the IPv4 type-of-service byte on the socket when non zero.
	TOS int

	// Metrics receives packet counters (optional).
	Metrics *metrics.Collector

	// Progress is called after each acknowledged block (optional).
	Progress ProgressCallback
}

func DefaultConfig() Config {
	return Config{
		Port:             types.DefaultPort,
		Timeout:          DefaultTimeout,
		Retries:          types.DefaultRetries,
		MinBlockSize:     types.MinBlockSize,
		DefaultBlockSize: types.DefaultBlockSize,
		MaxBlockSize:     types.MaxBlockSize,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: empty host", utils.ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d", utils.ErrInvalidConfig, c.Port)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout %s", utils.ErrInvalidConfig, c.Timeout)
	case c.Retries < 0:
		return fmt.Errorf("%w: retries %d", utils.ErrInvalidConfig, c.Retries)
	case c.MinBlockSize < 1 || c.MaxBlockSize > types.MaxBlockSize || c.MinBlockSize > c.MaxBlockSize:
		return fmt.Errorf("%w: block size bounds [%d, %d]", utils.ErrInvalidConfig, c.MinBlockSize, c.MaxBlockSize)
	case c.DefaultBlockSize < c.MinBlockSize || c.DefaultBlockSize > c.MaxBlockSize:
		return fmt.Errorf("%w: default block size %d", utils.ErrInvalidConfig, c.DefaultBlockSize)
	case c.TOS < 0 || c.TOS > 255:
		return fmt.Errorf("%w: tos %d", utils.ErrInvalidConfig, c.TOS)
	}

	return nil
}

type Option func(*Config)

func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func WithRetries(retries int) Option {
	return func(c *Config) {
		c.Retries = retries
	}
}

func WithBlockSizeBounds(minSize, defaultSize, maxSize int) Option {
	return func(c *Config) {
		c.MinBlockSize = minSize
		c.DefaultBlockSize = defaultSize
		c.MaxBlockSize = maxSize
	}
}

func WithTOS(tos int) Option {
	return func(c *Config) {
		c.TOS = tos
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func WithProgress(cb ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = cb
	}
}
