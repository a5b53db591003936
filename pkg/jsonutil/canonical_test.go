package jsonutil_test

import (
	"encoding/json"
	"testing"

	"github.com/drover-project/drover/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortedKeys(t *testing.T) {
	input := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(out))
}

func TestCanonicalMarshal_Nested(t *testing.T) {
	input := map[string]any{
		"b": map[string]any{"z": 1, "a": 2},
		"a": 0,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":0,"b":{"a":2,"z":1}}`, string(out))
}

func TestCanonicalMarshal_NullPreserved(t *testing.T) {
	input := map[string]any{"key": nil}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"key":null}`, string(out))
}

func TestCanonicalMarshal_Arrays(t *testing.T) {
	input := map[string]any{"a": []any{1, 2, 3}}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2,3]}`, string(out))
}

func TestCanonicalMarshal_Deterministic(t *testing.T) {
	type entry struct {
		From int `json:"from_version"`
		To   int `json:"to_version"`
	}
	a, err := jsonutil.CanonicalMarshal([]entry{{From: 1, To: 2}})
	require.NoError(t, err)
	b, err := jsonutil.CanonicalMarshal([]entry{{From: 1, To: 2}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalMarshal_UnsupportedValue(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal(make(chan int))
	assert.Error(t, err)
}

func TestMarshalIndented_RoundTrip(t *testing.T) {
	input := map[string]any{"a": []any{float64(1), nil}, "b": "x"}
	data, err := jsonutil.MarshalIndented(input)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, input, back)
}
