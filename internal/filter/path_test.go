package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	_, rej := Evaluate(And(Path("hello"), PathEnd()), newRequest("GET", "/hello/"))
	assert.Nil(t, rej)

	_, rej = Evaluate(And(Path("hello"), PathEnd()), newRequest("GET", "/hello/world"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)

	assert.Panics(t, func() { Path("") })
	assert.Panics(t, func() { Path("a/b") })
}

func TestPath_DecodesSegments(t *testing.T) {
	tup, rej := Evaluate(Param[string](), newRequest("GET", "/a%20b"))
	require.Nil(t, rej)
	assert.Equal(t, "a b", Value[string](tup, 0))
}

func TestPrefix(t *testing.T) {
	f := And(Prefix("/api/v1/"), Tail())

	tup, rej := Evaluate(f, newRequest("GET", "/api/v1/users/7"))
	require.Nil(t, rej)
	assert.Equal(t, "users/7", Value[string](tup, 0))

	_, rej = Evaluate(Prefix("/"), newRequest("GET", "/anything"))
	assert.Nil(t, rej)
}

func TestParam(t *testing.T) {
	f := And(Path("wait"), Param[time.Duration]())

	tup, rej := Evaluate(f, newRequest("GET", "/wait/250ms"))
	require.Nil(t, rej)
	assert.Equal(t, 250*time.Millisecond, Value[time.Duration](tup, 0))

	_, rej = Evaluate(f, newRequest("GET", "/wait/soon"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
	assert.Error(t, rej.Cause)

	_, rej = Evaluate(f, newRequest("GET", "/wait"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
}

func TestRoute_Cursor(t *testing.T) {
	rt := NewRoute(newRequest("GET", "//a//b/c"))
	assert.Equal(t, []string{"a", "b", "c"}, rt.Remaining())

	_, rej := EvaluateRoute(And(Path("a"), Path("b")), rt)
	require.Nil(t, rej)
	assert.Equal(t, []string{"a", "b"}, rt.Matched())
	seg, ok := rt.Peek()
	assert.True(t, ok)
	assert.Equal(t, "c", seg)
}

func TestQuery(t *testing.T) {
	f := Query[int]("page")

	tup, rej := Evaluate(f, newRequest("GET", "/?page=2&page=3"))
	require.Nil(t, rej)
	assert.Equal(t, 2, Value[int](tup, 0))

	_, rej = Evaluate(f, newRequest("GET", "/"))
	require.NotNil(t, rej)
	assert.Equal(t, KindParseFailure, rej.Kind)
	assert.Equal(t, "page", rej.Field)

	_, rej = Evaluate(f, newRequest("GET", "/?page=two"))
	require.NotNil(t, rej)
	assert.Equal(t, KindParseFailure, rej.Kind)

	tup, rej = Evaluate(RawQuery(), newRequest("GET", "/?a=1&b=2"))
	require.Nil(t, rej)
	assert.Equal(t, "a=1&b=2", Value[string](tup, 0))
}
