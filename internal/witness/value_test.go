package witness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGoSupportedTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"string", "hello", String("hello")},
		{"int", 42, Int(42)},
		{"int64", int64(-7), Int(-7)},
		{"int32", int32(9), Int(9)},
		{"uint32", uint32(5), Int(5)},
		{"bool", true, Bool(true)},
		{"nil", nil, Null{}},
		{"already a value", Int(1), Int(1)},
		{"slice", []any{1, "a"}, Array{Int(1), String("a")}},
		{"map", map[string]any{"k": false}, Object{"k": Bool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.True(t, Equal(tt.expected, got), "FromGo(%v) = %v", tt.input, got)
		})
	}
}

func TestNewStringStoredForm(t *testing.T) {
	assert.Equal(t, String("ok"), NewString("ok"))
	assert.Equal(t, String("\u00e9"), NewString("e\u0301"), "NFC folds combining marks")
	assert.Equal(t, String("\ufffd"), NewString("\xff"))
	assert.Equal(t, String("\ufffd\ufffd"), NewString("\xff\xfe"), "one replacement per invalid byte")

	got, err := FromGo("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, String("\u00e9"), got)
}

func TestFromGoRejectsFloats(t *testing.T) {
	_, err := FromGo(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	_, err = FromGo([]any{1, 2.5})
	require.Error(t, err)
}

func TestFromGoRejectsHugeUnsigned(t *testing.T) {
	_, err := FromGo(uint64(1 << 63))
	require.Error(t, err)
}

func TestToGoRoundTrip(t *testing.T) {
	v := Object{
		"xs": Array{Int(1), Int(2)},
		"s":  String("ok"),
		"b":  Bool(true),
		"n":  Null{},
	}

	back, err := FromGo(ToGo(v))
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Int(2)))
	assert.False(t, Equal(Int(1), String("1")))
	assert.True(t, Equal(Array{Int(1)}, Array{Int(1)}))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(1), Int(2)}))
	assert.True(t, Equal(Object{"a": Null{}}, Object{"a": Null{}}))
	assert.False(t, Equal(Object{"a": Null{}}, Object{"b": Null{}}))
}

func TestUnmarshalValueStrict(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"a":[1,true,"x",null]}`))
	require.NoError(t, err)
	assert.True(t, Equal(Object{"a": Array{Int(1), Bool(true), String("x"), Null{}}}, v))

	_, err = UnmarshalValue([]byte(`1.5`))
	require.Error(t, err, "floats must be rejected")

	_, err = UnmarshalValue([]byte(`{`))
	require.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("MyMod.positive_sum")
	require.NoError(t, err)
	assert.Equal(t, "MyMod", id.Module)
	assert.Equal(t, "positive_sum", id.Name)
	assert.Equal(t, "MyMod.positive_sum", id.String())

	// Dotted module paths split on the last dot
	id, err = ParseID("a.b.prop")
	require.NoError(t, err)
	assert.Equal(t, "a.b", id.Module)
	assert.Equal(t, "prop", id.Name)

	for _, bad := range []string{"", "noDot", ".leading", "trailing."} {
		_, err := ParseID(bad)
		assert.Error(t, err, "ParseID(%q) should fail", bad)
	}
}
