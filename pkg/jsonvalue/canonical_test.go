package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonicalOf(t *testing.T, in string) string {
	t.Helper()
	v, err := Parse([]byte(in))
	require.NoError(t, err)
	return string(Canonical(v))
}

func TestCanonical_Numbers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"373443", "373443"},
		{"1.50", "1.5"},
		{"1.0", "1"},
		{"1e2", "100"},
		{"-0", "0"},
		{"0.0", "0"},
		{"-12.5", "-12.5"},
		{"0.000001", "0.000001"},
		{"0.0000001", "1e-7"},
		{"1e21", "1e+21"},
		{"123456789012345678901", "123456789012345680000"},
		{"1E400", "1E400"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalOf(t, tt.in))
		})
	}
}

func TestCanonical_SortsKeysAndCompacts(t *testing.T) {
	got := canonicalOf(t, `{ "b" : [ 1 , {"z":null, "a":true} ], "a" : "x" }`)
	assert.Equal(t, `{"a":"x","b":[1,{"a":true,"z":null}]}`, got)
}

func TestCanonical_IndependentOfInputOrder(t *testing.T) {
	a := canonicalOf(t, `{"first":"Tom","last":"Anderson","age":40}`)
	b := canonicalOf(t, `{"age":40.0,"last":"Anderson","first":"Tom"}`)
	assert.Equal(t, a, b)
}

func TestCanonical_KeyOrderUsesUTF16(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) and sorts before U+FB01.
	got := canonicalOf(t, `{"ﬁ":1,"😀":2,"a":3}`)
	assert.Equal(t, "{\"a\":3,\"\U0001F600\":2,\"ﬁ\":1}", got)
}

func TestCanonical_StringEscaping(t *testing.T) {
	v := FromArray(FromString("q\"b\\s\b\f\n\r\t\x01</é>"))
	assert.Equal(t, `["q\"b\\s\b\f\n\r\t\u0001</é>"]`, string(Canonical(v)))
}

func TestCanonical_EmptyContainers(t *testing.T) {
	assert.Equal(t, `{"a":[],"b":{}}`, canonicalOf(t, `{"a":[],"b":{}}`))
	assert.Equal(t, "[]", string(Canonical(FromArray())))
	assert.Equal(t, "{}", string(Canonical(FromObject(nil))))
}

func TestAppendText(t *testing.T) {
	assert.Equal(t, "Anderson", string(AppendText(nil, FromString("Anderson"))))
	assert.Equal(t, "373443", string(AppendText(nil, FromNumber("373443"))))
	assert.Equal(t, "true", string(AppendText(nil, FromBool(true))))
	assert.Equal(t, "null", string(AppendText(nil, Null())))
	assert.Equal(t, `["Sara","Alex","Jack"]`,
		string(AppendText(nil, FromArray(FromString("Sara"), FromString("Alex"), FromString("Jack")))))
	assert.Equal(t, "prefix:a\"b", string(AppendText([]byte("prefix:"), FromString(`a"b`))))
}
