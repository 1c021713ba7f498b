package filter

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level int

func (l *level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return fmt.Errorf("unknown level %q", b)
	}
	return nil
}

func TestParseValue(t *testing.T) {
	n, err := ParseValue[int]("-7")
	require.NoError(t, err)
	assert.Equal(t, -7, n)

	u8, err := ParseValue[uint8]("255")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u8)

	_, err = ParseValue[uint8]("256")
	assert.Error(t, err)

	f, err := ParseValue[float64]("1.5")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 0)

	b, err := ParseValue[bool]("true")
	require.NoError(t, err)
	assert.True(t, b)

	d, err := ParseValue[time.Duration]("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	ap, err := ParseValue[netip.AddrPort]("[::1]:80")
	require.NoError(t, err)
	assert.Equal(t, uint16(80), ap.Port())

	a, err := ParseValue[netip.Addr]("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, a.Is4())
}

func TestParseValue_TextUnmarshaler(t *testing.T) {
	l, err := ParseValue[level]("high")
	require.NoError(t, err)
	assert.Equal(t, level(2), l)

	_, err = ParseValue[level]("medium")
	assert.Error(t, err)
}

func TestParseValue_Unsupported(t *testing.T) {
	_, err := ParseValue[struct{ X int }]("x")
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	assert.Panics(t, func() { Header[chan int]("x") })
	assert.Panics(t, func() { Param[[]string]() })
}

func TestQuery_Decoding(t *testing.T) {
	f := Query[int]("page")
	assert.True(t, f.Shape().Equal(ShapeOf[int]()))

	tuple, rej := Evaluate(f, newRequest("GET", "/list?page=3&page=9"))
	require.Nil(t, rej)
	assert.Equal(t, 3, Value[int](tuple, 0))

	_, rej = Evaluate(f, newRequest("GET", "/list"))
	require.NotNil(t, rej)
	assert.Equal(t, KindParseFailure, rej.Kind)
	assert.Equal(t, "page", rej.Field)

	_, rej = Evaluate(f, newRequest("GET", "/list?page=two"))
	require.NotNil(t, rej)
	assert.Equal(t, KindParseFailure, rej.Kind)
	assert.Equal(t, "page", rej.Field)
	assert.Error(t, rej.Cause)
}
