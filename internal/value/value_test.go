package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical_SortsKeysAndMinimizesWhitespace(t *testing.T) {
	v := Map([]Field{
		{Key: "z", Val: Int(1)},
		{Key: "a", Val: List([]Value{Str("x"), Null()})},
		{Key: "m", Val: Bool(true)},
	})
	assert.Equal(t, `{"a":["x",null],"m":true,"z":1}`, v.Canonical())
}

func TestCanonical_LaterDuplicateKeyWins(t *testing.T) {
	v := Map([]Field{
		{Key: "k", Val: Int(1)},
		{Key: "k", Val: Int(2)},
	})
	assert.Equal(t, `{"k":2}`, v.Canonical())
}

func TestEncodeJSON_StringEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc", `"abc"`},
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
		{"control chars", "a\nb\tc\x01", "\"a\\u000ab\\u0009c\\u0001\""},
		{"unicode passes through", "héllo→", `"héllo→"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Str(tt.in).EncodeJSON(-1))
		})
	}
}

func TestEncodeJSON_Numbers(t *testing.T) {
	assert.Equal(t, "42", Int(42).EncodeJSON(-1))
	assert.Equal(t, "-7", Int(-7).EncodeJSON(-1))
	assert.Equal(t, "1.5", Float(1.5).EncodeJSON(-1))
	// Whole floats keep a decimal point so the source type stays visible.
	assert.Equal(t, "2.0", Float(2).EncodeJSON(-1))
	assert.Equal(t, "1e+30", Float(1e30).EncodeJSON(-1))
}

func TestEncodeJSON_PrettyIsCosmeticOnly(t *testing.T) {
	v := Map([]Field{
		{Key: "b", Val: List([]Value{Int(1), Int(2)})},
		{Key: "a", Val: Str("x")},
	})
	compact := v.EncodeJSON(-1)
	pretty := v.EncodeJSON(2)

	assert.Equal(t, `{"a":"x","b":[1,2]}`, compact)
	assert.Equal(t, "{\n  \"a\": \"x\",\n  \"b\": [\n    1,\n    2\n  ]\n}", pretty)
}

func TestCompare_Ordering(t *testing.T) {
	assert.Negative(t, Compare(Int(1), Int(2)))
	assert.Positive(t, Compare(Str("b"), Str("a")))
	assert.Zero(t, Compare(Int(3), Int(3)))
	// Int and float compare numerically across kinds.
	assert.Negative(t, Compare(Int(1), Float(1.5)))
	// Kinds order before payloads otherwise.
	assert.NotZero(t, Compare(Str("1"), Int(1)))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "plain", Str("plain").Stringify())
	assert.Equal(t, "42", Int(42).Stringify())
	assert.Equal(t, `[1,"a"]`, List([]Value{Int(1), Str("a")}).Stringify())
}

func TestEqual_ByCanonicalForm(t *testing.T) {
	a := Map([]Field{{Key: "x", Val: Int(1)}, {Key: "y", Val: Int(2)}})
	b := Map([]Field{{Key: "y", Val: Int(2)}, {Key: "x", Val: Int(1)}})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(Int(1), Float(1)))
}

func TestLen_CountsRunesForStrings(t *testing.T) {
	assert.Equal(t, 5, Str("héllo").Len())
	assert.Equal(t, 2, List([]Value{Int(1), Int(2)}).Len())
	assert.Equal(t, 0, Null().Len())
}
