package filter

import (
	"encoding"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

// ErrUnsupportedType is returned by ParseValue for types it cannot decode.
var ErrUnsupportedType = errors.New("unsupported value type")

// ParseValue decodes s into T. Supported are string, the sized and
// unsized integer and float types, bool, time.Duration, netip.Addr,
// netip.AddrPort, *url.URL and every type whose pointer implements
// encoding.TextUnmarshaler.
func ParseValue[T any](s string) (T, error) {
	parse, ok := parserFor[T]()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrUnsupportedType, reflect.TypeFor[T]())
	}
	return parse(s)
}

// mustParser returns the parser for T, panicking for unsupported types so
// that the mistake surfaces when the filter is built.
func mustParser[T any](op string) func(string) (T, error) {
	parse, ok := parserFor[T]()
	if !ok {
		panic(fmt.Sprintf("filter: %s: %s: %s", op, ErrUnsupportedType, reflect.TypeFor[T]()))
	}
	return parse
}

func parserFor[T any]() (func(string) (T, error), bool) {
	var zero T
	var p any
	switch any(zero).(type) {
	case string:
		p = func(s string) (string, error) { return s, nil }
	case int:
		p = strconv.Atoi
	case int8:
		p = func(s string) (int8, error) { v, err := strconv.ParseInt(s, 10, 8); return int8(v), err }
	case int16:
		p = func(s string) (int16, error) { v, err := strconv.ParseInt(s, 10, 16); return int16(v), err }
	case int32:
		p = func(s string) (int32, error) { v, err := strconv.ParseInt(s, 10, 32); return int32(v), err }
	case int64:
		p = func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
	case uint:
		p = func(s string) (uint, error) { v, err := strconv.ParseUint(s, 10, 0); return uint(v), err }
	case uint8:
		p = func(s string) (uint8, error) { v, err := strconv.ParseUint(s, 10, 8); return uint8(v), err }
	case uint16:
		p = func(s string) (uint16, error) { v, err := strconv.ParseUint(s, 10, 16); return uint16(v), err }
	case uint32:
		p = func(s string) (uint32, error) { v, err := strconv.ParseUint(s, 10, 32); return uint32(v), err }
	case uint64:
		p = func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }
	case float32:
		p = func(s string) (float32, error) { v, err := strconv.ParseFloat(s, 32); return float32(v), err }
	case float64:
		p = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	case bool:
		p = strconv.ParseBool
	case time.Duration:
		p = time.ParseDuration
	case netip.Addr:
		p = netip.ParseAddr
	case netip.AddrPort:
		p = netip.ParseAddrPort
	case *url.URL:
		p = url.Parse
	}
	if p != nil {
		return p.(func(string) (T, error)), true
	}
	if _, ok := any(&zero).(encoding.TextUnmarshaler); ok {
		return func(s string) (T, error) {
			var v T
			err := any(&v).(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
			return v, err
		}, true
	}
	return nil, false
}
