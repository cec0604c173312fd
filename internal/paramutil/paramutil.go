// Package paramutil reads typed values out of wire command parameters.
// Every failure is an InvalidArgumentError, which transports report with
// the W3C "invalid argument" code.
package paramutil

import (
	"fmt"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
)

func invalid(format string, args ...interface{}) error {
	return seltraceerrors.NewInvalidArgumentError("invalid argument: "+fmt.Sprintf(format, args...), nil)
}

// GetRequiredString retrieves a parameter that must be present and a string.
func GetRequiredString(params map[string]interface{}, key string) (string, error) {
	value, exists := params[key]
	if !exists {
		return "", invalid("missing required parameter '%s'", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", invalid("parameter '%s' must be a string, got %T", key, value)
	}
	return s, nil
}

// GetOptionalString returns the string under key and whether it was present.
func GetOptionalString(params map[string]interface{}, key string) (string, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return "", false, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", false, invalid("parameter '%s' must be a string, got %T", key, value)
	}
	return s, true, nil
}

// GetOptionalSlice returns the list under key. A missing or null value
// yields an empty list.
func GetOptionalSlice(params map[string]interface{}, key string) ([]interface{}, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return nil, nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return nil, invalid("parameter '%s' must be a list, got %T", key, value)
	}
	return list, nil
}

// GetOptionalMap retrieves a map parameter, converting the
// map[interface{}]interface{} shape YAML decoders produce.
func GetOptionalMap(params map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return nil, false, nil
	}
	if m, ok := value.(map[string]interface{}); ok {
		return m, true, nil
	}
	if generic, ok := value.(map[interface{}]interface{}); ok {
		converted := make(map[string]interface{}, len(generic))
		for k, v := range generic {
			sk, ok := k.(string)
			if !ok {
				return nil, false, invalid("parameter '%s' must be a map with string keys, found key of type %T", key, k)
			}
			converted[sk] = v
		}
		return converted, true, nil
	}
	return nil, false, invalid("parameter '%s' must be a map, got %T", key, value)
}

// GetOptionalInt accepts any integer type and whole floats, which is how
// JSON-decoded numbers arrive.
func GetOptionalInt(params map[string]interface{}, key string) (int, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return 0, false, nil
	}
	switch v := value.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		if int64(int(v)) != v {
			return 0, false, invalid("parameter '%s' value %v overflows int", key, v)
		}
		return int(v), true, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true, nil
		}
		return 0, false, invalid("parameter '%s' is a non-integer number (%v)", key, v)
	default:
		return 0, false, invalid("parameter '%s' must be an integer, got %T", key, value)
	}
}

// GetOptionalBool returns the boolean under key and whether it was present.
func GetOptionalBool(params map[string]interface{}, key string) (bool, bool, error) {
	value, exists := params[key]
	if !exists || value == nil {
		return false, false, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, false, invalid("parameter '%s' must be a boolean, got %T", key, value)
	}
	return b, true, nil
}
