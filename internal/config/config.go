// Package config loads the loader profile: built-in defaults, then an
// optional TOML file, then TFTP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/client"
	"github.com/Wa4h1h/go-tftp-loader/pkg/types"
	"github.com/Wa4h1h/go-tftp-loader/pkg/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	dirName   = ".tftp-load"
	fileName  = "profile"
	fileType  = "toml"
	envPrefix = "TFTP"

	// DefaultBlockSize fits one probe flash write buffer per DATA block.
	DefaultBlockSize = 1024 + 128 + 64
)

type Profile struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	BlockSize int           `mapstructure:"blksize"`
	TOS       int           `mapstructure:"tos"`
	Target    string        `mapstructure:"target"`
	Address   string        `mapstructure:"addr"`
	LogLevel  string        `mapstructure:"log_level"`
}

// Load reads the profile from configPath, or from profile.toml in
// $HOME/.tftp-load and the working directory when configPath is empty.
// A missing default file is not an error.
func Load(configPath string) (*Profile, error) {
	v := viper.New()
	v.SetConfigType(fileType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("host", "192.168.10.50")
	v.SetDefault("port", types.DefaultPort)
	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetDefault("retries", types.DefaultRetries)
	v.SetDefault("blksize", DefaultBlockSize)
	v.SetDefault("tos", 0)
	v.SetDefault("target", "stm32f")
	v.SetDefault("addr", "0x08000000")
	v.SetDefault("log_level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		dir, err := utils.UserConfigDir(dirName)
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(dir)
		v.AddConfigPath(".")
		v.SetConfigName(fileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error while reading config: %w", err)
		}
	}

	var p Profile
	if err := v.Unmarshal(&p, viper.DecodeHook(durationHook())); err != nil {
		return nil, fmt.Errorf("error while decoding config: %w", err)
	}

	if _, err := p.LoadAddress(); err != nil {
		return nil, err
	}

	return &p, nil
}

// ParseTimeout accepts a duration ("1500ms") or whole seconds ("3").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %q", utils.ErrInvalidOption, s)
	}

	return d, nil
}

// durationHook decodes duration fields the way --timeout reads them: bare
// numbers are seconds, strings go through ParseTimeout.
func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))

	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			return ParseTimeout(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

// LoadAddress parses Address, accepting 0x-prefixed hex or decimal.
func (p *Profile) LoadAddress() (uint32, error) {
	addr, err := strconv.ParseUint(p.Address, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: load address %q", utils.ErrInvalidConfig, p.Address)
	}

	return uint32(addr), nil
}

// ClientOptions maps the profile onto session settings.
func (p *Profile) ClientOptions() []client.Option {
	return []client.Option{
		client.WithPort(p.Port),
		client.WithTimeout(p.Timeout),
		client.WithRetries(p.Retries),
		client.WithTOS(p.TOS),
	}
}
