package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/validation"
)

// Keys shared by every component node.
const (
	KeyClass    = "class"
	KeyType     = "type"
	KeyInstance = "componentInstance"
)

// Node is the configuration fragment of one component. It is read-only once
// the graph is built and may be shared between goroutines.
type Node map[string]any

// Has reports whether key is present with a non-nil value.
func (n Node) Has(key string) bool {
	v, ok := n[key]
	return ok && v != nil
}

// Class returns the component type name ("class", alias "type").
func (n Node) Class() string {
	if s := n.String(KeyClass, ""); s != "" {
		return s
	}
	return n.String(KeyType, "")
}

// Instance returns the explicit componentInstance, or "".
func (n Node) Instance() string {
	return n.String(KeyInstance, "")
}

// String returns key as a string, or def when absent.
func (n Node) String(key, def string) string {
	if !n.Has(key) {
		return def
	}
	switch v := n[key].(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns key as a bool, or def when absent or unparsable.
func (n Node) Bool(key string, def bool) bool {
	if !n.Has(key) {
		return def
	}
	switch v := n[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns key as an int, or def when absent or unparsable.
func (n Node) Int(key string, def int) int {
	if !n.Has(key) {
		return def
	}
	switch v := n[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}

// StringSlice returns key as a list of strings. A single string is split on
// commas.
func (n Node) StringSlice(key string) []string {
	if !n.Has(key) {
		return nil
	}
	switch v := n[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Decode maps the node onto the struct pointed to by out and validates the
// result against its `validate` tags. Unknown keys are ignored.
func (n Node) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := dec.Decode(map[string]any(n)); err != nil {
		return apperrors.ConfigInvalid(fmt.Sprintf("component '%s': %v", n.Class(), err)).WithCause(err)
	}
	return validation.Validate(out)
}
