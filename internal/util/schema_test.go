package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParametersRequired(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"code": map[string]any{"type": "string"}},
		"required":   []any{"code"},
	}

	require.NoError(t, ValidateParameters(map[string]any{"code": "print(1)"}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'code'")
	assert.Contains(t, err.Error(), "required field is missing")
}

func TestValidateParametersRequiredStringSlice(t *testing.T) {
	// Hand-written Go schemas carry []string instead of JSON-decoded []any.
	schema := map[string]any{
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}

	require.NoError(t, ValidateParameters(map[string]any{"path": "a.txt"}, schema))
	require.Error(t, ValidateParameters(map[string]any{}, schema))
}

func TestValidateParametersTypeChecks(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"count":   map[string]any{"type": "integer"},
			"ratio":   map[string]any{"type": "number"},
			"enabled": map[string]any{"type": "boolean"},
		},
	}

	// JSON numbers decode as float64; whole values pass as integers.
	require.NoError(t, ValidateParameters(map[string]any{"count": float64(3)}, schema))
	require.Error(t, ValidateParameters(map[string]any{"count": 3.5}, schema))
	require.NoError(t, ValidateParameters(map[string]any{"ratio": 3.5}, schema))
	require.Error(t, ValidateParameters(map[string]any{"enabled": "yes"}, schema))
}

func TestValidateParametersExtraFieldsAllowed(t *testing.T) {
	schema := map[string]any{"properties": map[string]any{}}
	require.NoError(t, ValidateParameters(map[string]any{"surprise": 1}, schema))
}

func TestNewCallIDPrefix(t *testing.T) {
	id := NewCallID()
	assert.True(t, strings.HasPrefix(id, "call_"))
	assert.Len(t, id, len("call_")+8)
	assert.NotEqual(t, id, NewCallID())
}
