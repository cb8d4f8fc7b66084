// Package filter redacts sensitive values from parameters, sessions and
// environment maps before they leave the process.
package filter

import (
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

// Redacted replaces the value of every sensitive key.
const Redacted = "[FILTERED]"

// DefaultSensitiveNames are matched when no names are configured.
var DefaultSensitiveNames = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"authorization",
	"cookie",
}

// Filter redacts values by key name. It is immutable and safe for concurrent use.
type Filter struct {
	names []string
}

// New creates a Filter matching keys that contain any of names,
// case-insensitively. A nil slice selects DefaultSensitiveNames.
func New(names []string) *Filter {
	if names == nil {
		names = DefaultSensitiveNames
	}
	f := &Filter{names: make([]string, 0, len(names))}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			f.names = append(f.names, n)
		}
	}
	return f
}

// Sensitive reports whether key matches a configured name.
func (f *Filter) Sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, n := range f.names {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

// FilterParameters returns a redacted deep copy of params. Nested maps and
// slices are descended into; the input is never modified.
func (f *Filter) FilterParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if f.Sensitive(k) {
			out[k] = Redacted
			continue
		}
		out[k] = f.value(v)
	}
	return out
}

// FilterEnvironment keeps only keys that are entirely upper-case, which
// separates real environment variables from framework objects sharing the
// same map, then redacts the survivors.
func (f *Filter) FilterEnvironment(env map[string]any) map[string]any {
	if env == nil {
		return nil
	}
	kept := make(map[string]any, len(env))
	for k, v := range env {
		if k == strings.ToUpper(k) {
			kept[k] = v
		}
	}
	return f.FilterParameters(kept)
}

func (f *Filter) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return f.FilterParameters(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			if f.Sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = s
			}
		}
		return out
	case url.Values:
		return f.value(map[string][]string(val))
	case http.Header:
		return f.value(map[string][]string(val))
	case map[string][]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			if f.Sensitive(k) {
				out[k] = Redacted
			} else {
				out[k] = append([]string(nil), s...)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = f.value(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = f.FilterParameters(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case string, []byte, nil:
		return v
	default:
		return f.reflectValue(reflect.ValueOf(v), v)
	}
}

// reflectValue handles maps keyed by strings, slices and arrays of any
// element type. Other values are returned as is.
func (f *Filter) reflectValue(rv reflect.Value, v any) any {
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if f.Sensitive(k) {
				out[k] = Redacted
				continue
			}
			out[k] = f.value(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if (rv.Kind() == reflect.Slice && rv.IsNil()) || rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = f.value(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return v
		}
		switch rv.Elem().Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			return f.reflectValue(rv.Elem(), rv.Elem().Interface())
		}
	}
	return v
}
