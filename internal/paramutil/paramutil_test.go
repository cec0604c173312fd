package paramutil_test

import (
	"testing"

	"github.com/gxo-labs/seltrace/internal/paramutil"
	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequiredString(t *testing.T) {
	v, err := paramutil.GetRequiredString(map[string]interface{}{"url": "https://example.com"}, "url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", v)

	_, err = paramutil.GetRequiredString(map[string]interface{}{}, "url")
	assert.True(t, seltraceerrors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "missing required parameter 'url'")

	_, err = paramutil.GetRequiredString(map[string]interface{}{"url": 3}, "url")
	assert.Contains(t, err.Error(), "must be a string, got int")
}

func TestGetOptionalInt(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    int
		present bool
		wantErr bool
	}{
		{"int", 2, 2, true, false},
		{"json number", 3.0, 3, true, false},
		{"int64", int64(4), 4, true, false},
		{"fraction", 1.5, 0, false, true},
		{"string", "1", 0, false, true},
		{"null", nil, 0, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := paramutil.GetOptionalInt(map[string]interface{}{"id": tc.value}, "id")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.present, ok)
		})
	}
}

func TestGetOptionalMapConvertsYAMLMaps(t *testing.T) {
	params := map[string]interface{}{"cookie": map[interface{}]interface{}{"name": "sid", "value": "1"}}
	m, ok, err := paramutil.GetOptionalMap(params, "cookie")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sid", m["name"])

	_, _, err = paramutil.GetOptionalMap(map[string]interface{}{"cookie": map[interface{}]interface{}{1: "x"}}, "cookie")
	assert.Error(t, err)
}

func TestGetOptionalSliceAndBool(t *testing.T) {
	list, err := paramutil.GetOptionalSlice(map[string]interface{}{"args": []interface{}{1, "a"}}, "args")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = paramutil.GetOptionalSlice(map[string]interface{}{}, "args")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = paramutil.GetOptionalSlice(map[string]interface{}{"args": "x"}, "args")
	assert.Error(t, err)

	b, ok, err := paramutil.GetOptionalBool(map[string]interface{}{"secure": true}, "secure")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b)
}
