package types

import (
	"fmt"
	"strconv"
	"strings"
)

type Option struct {
	Name  string
	Value string
}

// NewOption renders value as an option string. Integers of any width are
// written in decimal.
func NewOption(name string, value any) Option {
	var v string

	switch val := value.(type) {
	case string:
		v = val
	case int:
		v = strconv.FormatInt(int64(val), 10)
	case int8:
		v = strconv.FormatInt(int64(val), 10)
	case int16:
		v = strconv.FormatInt(int64(val), 10)
	case int32:
		v = strconv.FormatInt(int64(val), 10)
	case int64:
		v = strconv.FormatInt(val, 10)
	case uint:
		v = strconv.FormatUint(uint64(val), 10)
	case uint8:
		v = strconv.FormatUint(uint64(val), 10)
	case uint16:
		v = strconv.FormatUint(uint64(val), 10)
	case uint32:
		v = strconv.FormatUint(uint64(val), 10)
	case uint64:
		v = strconv.FormatUint(val, 10)
	default:
		v = fmt.Sprint(val)
	}

	return Option{Name: name, Value: v}
}

// Options keeps the order options were supplied in, which is the order
// they go on the wire. Names compare case-insensitively.
type Options []Option

func (o Options) Get(name string) (string, bool) {
	for _, opt := range o {
		if strings.EqualFold(opt.Name, name) {
			return opt.Value, true
		}
	}

	return "", false
}

func (o Options) Int(name string) (int, bool, error) {
	v, ok := o.Get(name)
	if !ok {
		return 0, false, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("option %s=%q is not numeric: %w", name, v, err)
	}

	return n, true, nil
}

// Set replaces the value of an existing option or appends a new one.
func (o Options) Set(name string, value any) Options {
	opt := NewOption(name, value)

	for i := range o {
		if strings.EqualFold(o[i].Name, name) {
			o[i].Value = opt.Value

			return o
		}
	}

	return append(o, opt)
}

func (o Options) String() string {
	parts := make([]string, 0, len(o))
	for _, opt := range o {
		parts = append(parts, opt.Name+"="+opt.Value)
	}

	return strings.Join(parts, " ")
}
