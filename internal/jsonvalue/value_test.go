package jsonvalue

import (
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	v, err := ParseString(`{"s":"x","n":12.5,"b":true,"z":null,"a":[1,"2"],"o":{"k":"v"}}`)
	require.NoError(t, err)
	require.Equal(t, Object, v.Kind())

	s, ok := v.At("s").Str()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	f, ok := v.At("n").Float()
	assert.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-9)

	b, ok := v.At("b").Bool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, v.At("z").IsNull())
	assert.True(t, v.At("missing").IsNull())

	assert.Equal(t, 2, v.At("a").Len())
	lit, ok := v.At("a").Index(1).Literal()
	assert.True(t, ok)
	assert.Equal(t, "2", lit)
	assert.True(t, v.At("a").Index(5).IsNull())

	assert.Equal(t, "v", v.Path("o", "k").StrOr(""))
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `[1,2`} {
		_, err := ParseString(in)
		assert.Error(t, err, in)
	}
}

func TestParse_DepthBound(t *testing.T) {
	deep := strings.Repeat("[", MaxDepth+2) + strings.Repeat("]", MaxDepth+2)
	_, err := ParseString(deep)
	require.ErrorIs(t, err, ErrTooDeep)

	ok := strings.Repeat("[", MaxDepth) + strings.Repeat("]", MaxDepth)
	_, err = ParseString(ok)
	require.NoError(t, err)
}

func TestFirst(t *testing.T) {
	v, err := ParseString(`{"one":"a","many":["b","c"],"none":[]}`)
	require.NoError(t, err)

	assert.Equal(t, "a", v.At("one").First().StrOr(""))
	assert.Equal(t, "b", v.At("many").First().StrOr(""))
	assert.True(t, v.At("none").First().IsNull())
}

func TestWalk_VisitsNestedObjects(t *testing.T) {
	v, err := ParseString(`{"@graph":[{"@type":"Product","name":"A","isRelatedTo":{"@type":"Product","name":"B"}},[{"name":"C"}]]}`)
	require.NoError(t, err)

	var names []string
	Walk(v, func(obj Value) bool {
		if n, ok := obj.At("name").Str(); ok {
			names = append(names, n)
		}
		return true
	})
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestWalk_Stop(t *testing.T) {
	v, err := ParseString(`[{"n":1},{"n":2},{"n":3}]`)
	require.NoError(t, err)

	var seen int
	Walk(v, func(Value) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestFindString(t *testing.T) {
	v, err := ParseString(`{"data":{"session":{"accessToken":""},"auth":{"access_token":"tok-1"}}}`)
	require.NoError(t, err)

	tok, ok := FindString(v, "access_token", "accessToken")
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	_, ok = FindString(v, "jwt")
	assert.False(t, ok)
}

func TestEncode_RoundTripsSourceOrder(t *testing.T) {
	const doc = `{"b":1.50,"a":[true,null,"x"],"c":{}}`
	v, err := ParseString(doc)
	require.NoError(t, err)

	var e jx.Encoder
	v.Encode(&e)
	assert.Equal(t, doc, e.String())
}
