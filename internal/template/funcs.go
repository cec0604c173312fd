package template

import (
	"fmt"
	"os"
	"reflect"
	"text/template"

	"github.com/gxo-labs/seltrace/internal/secrets"
)

// FuncMap returns the functions available to step templates:
//
//	env "HOME"                 environment variable, empty when unset
//	secret "LOGIN_PASSWORD"    required value, tracked for redaction
//	default "x" .vars.maybe    fallback for empty values
//	eq a b                     deep equality
func FuncMap(lookup Lookup, tracker *secrets.SecretTracker) template.FuncMap {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return template.FuncMap{
		"env": func(key string) string {
			v, _ := lookup(key)
			return v
		},
		"secret":  secretFunc(lookup, tracker),
		"default": funcDefault,
		"eq": func(a, b interface{}) bool {
			return reflect.DeepEqual(a, b)
		},
	}
}

func secretFunc(lookup Lookup, tracker *secrets.SecretTracker) func(string) (string, error) {
	return func(key string) (string, error) {
		value, found := lookup(key)
		if !found || value == "" {
			return "", fmt.Errorf("secret '%s' not found", key)
		}
		if tracker != nil {
			tracker.Add(value)
		}
		return value, nil
	}
}

func funcDefault(fallback, value interface{}) interface{} {
	if value == nil {
		return fallback
	}
	if s, ok := value.(string); ok && s == "" {
		return fallback
	}
	return value
}
