// Package common provides configuration, logging and shared helpers.
//
// Configuration strings may reference environment variables with {NAME}:
//
//	api_key    = "{API_NINJAS_KEY}"
//	user_agent = "psuscan ({SEC_CONTACT})"
//
// References are resolved after all files and overrides are applied. Unknown
// names are left in place and logged as warnings.
package common

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {NAME} references in strings
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences replaces every {name} in input with its value.
// Missing names are left unchanged.
func ReplaceKeyReferences(input string, values map[string]string, logger arbor.ILogger) string {
	if input == "" || !strings.Contains(input, "{") {
		return input
	}

	return keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := values[name]; ok {
			return value
		}
		if logger != nil {
			logger.Warn().
				Str("reference", match).
				Msg("Unresolved reference - variable not set")
		}
		return match
	})
}

// ReplaceInStruct resolves references in every exported string and []string
// field of the struct v points to, descending into nested structs.
func ReplaceInStruct(v interface{}, values map[string]string, logger arbor.ILogger) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("ReplaceInStruct requires a pointer, got %T", v)
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("ReplaceInStruct requires a struct pointer, got pointer to %v", val.Kind())
	}
	replaceInStructValue(val, "", values, logger)
	return nil
}

func replaceInStructValue(val reflect.Value, prefix string, values map[string]string, logger arbor.ILogger) {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}
		name := prefix + typ.Field(i).Name

		switch field.Kind() {
		case reflect.String:
			old := field.String()
			if resolved := ReplaceKeyReferences(old, values, logger); resolved != old {
				field.SetString(resolved)
				// values may be secrets, so only the field is logged
				if logger != nil {
					logger.Debug().Str("field", name).Msg("Resolved config reference")
				}
			}

		case reflect.Struct:
			replaceInStructValue(field, name+".", values, logger)

		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				elem.SetString(ReplaceKeyReferences(elem.String(), values, logger))
			}
		}
	}
}

// EnvValues returns the process environment as a map
func EnvValues() map[string]string {
	env := os.Environ()
	values := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			values[k] = v
		}
	}
	return values
}

// ResolveReferences replaces {NAME} references in the config from the environment
func (c *Config) ResolveReferences(logger arbor.ILogger) error {
	return ReplaceInStruct(c, EnvValues(), logger)
}

// IsUnresolved reports whether s still contains a {NAME} reference
func IsUnresolved(s string) bool {
	return keyRefPattern.MatchString(s)
}
