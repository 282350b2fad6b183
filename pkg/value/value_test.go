package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePreservesObjectOrder(t *testing.T) {
	v, err := Decode([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	members, ok := v.AsObject()
	require.True(t, ok)
	require.Len(t, members, 3)
	require.Equal(t, "z", members[0].Key)
	require.Equal(t, "a", members[1].Key)
	require.Equal(t, "m", members[2].Key)
	require.Equal(t, `{"z":1,"a":2,"m":3}`, v.EncodeJSON())
}

func TestDecodeNumberKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"0", KindInt},
		{"42", KindInt},
		{"-7", KindInt},
		{"9007199254740992", KindInt},
		{"1.5", KindFloat},
		{"7.0", KindFloat},
		{"1e3", KindFloat},
		{"123456789012345678901234567890", KindFloat},
	}
	for _, tc := range cases {
		v, err := Decode([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.kind, v.Kind(), tc.raw)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Object(
		Member{Key: "kind", Value: String("response")},
		Member{Key: "callback", Value: Int(9)},
		Member{Key: "ok", Value: Bool(true)},
		Member{Key: "result", Value: Array(Null(), Float(2.5), String("a\"b"), Object(
			Member{Key: "nested", Value: Bool(false)},
		))},
	)
	decoded, err := Decode([]byte(original.EncodeJSON()))
	require.NoError(t, err)
	require.True(t, original.Equal(decoded), "round trip changed value: %s vs %s",
		original.EncodeJSON(), decoded.EncodeJSON())
}

func TestCloneIsDeep(t *testing.T) {
	inner := Array(Int(1), Int(2))
	v := Object(Member{Key: "xs", Value: inner})
	clone := v.Clone()

	items, _ := v.obj[0].Value.AsArray()
	items[0] = Int(99)

	got, ok := clone.Get("xs")
	require.True(t, ok)
	cloned, _ := got.AsArray()
	first, _ := cloned[0].AsInt()
	require.Equal(t, int64(1), first)
}

func TestGetLastWins(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"a":2}`))
	require.NoError(t, err)
	got, ok := v.Get("a")
	require.True(t, ok)
	i, _ := got.AsInt()
	require.Equal(t, int64(2), i)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{} {}`))
	require.Error(t, err)
}

func TestStringEscaping(t *testing.T) {
	v := String("</script>\n\t\"quote\"")
	decoded, err := Decode([]byte(v.EncodeJSON()))
	require.NoError(t, err)
	s, ok := decoded.AsString()
	require.True(t, ok)
	require.Equal(t, "</script>\n\t\"quote\"", s)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{"b": true, "a": []any{1, "x"}})
	require.NoError(t, err)
	require.Equal(t, `{"a":[1,"x"],"b":true}`, v.EncodeJSON())

	_, err = FromGo(struct{}{})
	require.Error(t, err)
}

func TestFloatStaysFloatAcrossRoundTrip(t *testing.T) {
	v, err := Decode([]byte(Float(7).EncodeJSON()))
	require.NoError(t, err)
	require.Equal(t, KindFloat, v.Kind())
}
