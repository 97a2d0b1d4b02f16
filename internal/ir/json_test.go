package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_PreservesObjectOrder(t *testing.T) {
	v, err := ParseJSON([]byte(`{"z":1,"a":{"y":"s","b":true},"m":null,"l":[1,"x"]}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)

	var keys []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"z", "a", "m", "l"}, keys)

	z, _ := obj.Get("z")
	assert.Equal(t, 1.0, z)

	inner, _ := obj.Get("a")
	innerObj := inner.(*Object)
	assert.Equal(t, "y", innerObj.Oldest().Key)

	m, present := obj.Get("m")
	assert.True(t, present)
	assert.Nil(t, m)

	l, _ := obj.Get("l")
	assert.Equal(t, []any{1.0, "x"}, l)
}

func TestParseJSON_Escapes(t *testing.T) {
	v, err := ParseJSON([]byte(`{"k\"ey":"a\nb\u00e9","x\\n":1}`))
	require.NoError(t, err)
	val, _ := v.(*Object).Get(`k"ey`)
	assert.Equal(t, "a\nb\u00e9", val)
	_, present := v.(*Object).Get(`x\n`)
	assert.True(t, present)
}

func TestParseJSON_Invalid(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `[1,]`, `nope`} {
		_, err := ParseJSON([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestAppendJSONString(t *testing.T) {
	got := string(AppendJSONString(nil, "a\"b\\c\n<&> \x01"))
	assert.Equal(t, `"a\"b\\c\n<&>`+" "+`\u0001"`, got)
}

func TestAppendScalarJSON(t *testing.T) {
	assert.Equal(t, `"x"`, string(AppendScalarJSON(nil, String("x"))))
	assert.Equal(t, `2.5`, string(AppendScalarJSON(nil, Number(2.5))))
	assert.Equal(t, `false`, string(AppendScalarJSON(nil, Bool(false))))
	assert.Equal(t, `null`, string(AppendScalarJSON(nil, nil)))
}
