package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindString, KindOf(IRString("x")))
	assert.Equal(t, KindInt, KindOf(IRInt(1)))
	assert.Equal(t, KindBool, KindOf(IRBool(true)))
	assert.Equal(t, KindObject, KindOf(IRObject{}))
	assert.Equal(t, "", KindOf(nil))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, IRInt(0)))
	assert.True(t, Equal(IRInt(3), IRInt(3)))
	assert.False(t, Equal(IRInt(3), IRString("3")))
	assert.True(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"a": IRInt(1)}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRObject{"a": IRInt(2)}))
	assert.False(t, Equal(IRObject{"a": IRInt(1)}, IRInt(1)))
}

func TestIRObjectClone(t *testing.T) {
	orig := IRObject{"a": IRInt(1)}
	clone := orig.Clone()
	clone["a"] = IRInt(2)

	assert.Equal(t, IRInt(1), orig["a"])
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{"name": IRString("w1"), "left": IRInt(-5), "removed": IRBool(false)}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"left":-5,"name":"w1","removed":false}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestUnmarshalIRValueRejectsFloatsAndNull(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`1.5`))
	assert.Error(t, err)

	_, err = UnmarshalIRValue([]byte(`null`))
	assert.Error(t, err)

	_, err = UnmarshalIRValue([]byte(`[1,2]`))
	assert.Error(t, err)

	var obj IRObject
	assert.Error(t, json.Unmarshal([]byte(`"text"`), &obj))
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(3)
	require.NoError(t, err)
	assert.Equal(t, IRInt(3), v)

	v, err = FromGo(float64(7))
	require.NoError(t, err)
	assert.Equal(t, IRInt(7), v)

	_, err = FromGo(7.5)
	assert.Error(t, err)

	v, err = FromGo(map[string]any{"x": "y"})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"x": IRString("y")}, v)
}
