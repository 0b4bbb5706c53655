package interfaces

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// InstanceProperties is the property bag carried by entities, relationships
// and classifications. Values are restricted to strings, integers, booleans,
// times, string maps and string slices so that a bag survives a JSON round
// trip through any repository backend. The typed accessors normalise the
// shapes JSON decoding produces (float64, json.Number, RFC3339 strings,
// []any, map[string]any).
type InstanceProperties map[string]any

// NewInstanceProperties returns an empty property bag.
func NewInstanceProperties() InstanceProperties {
	return InstanceProperties{}
}

// Clone returns a deep copy of the bag.
func (p InstanceProperties) Clone() InstanceProperties {
	if p == nil {
		return nil
	}
	out := make(InstanceProperties, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case map[string]string:
			out[k] = maps.Clone(val)
		case []string:
			out[k] = slices.Clone(val)
		case map[string]any:
			out[k] = maps.Clone(val)
		case []any:
			out[k] = slices.Clone(val)
		default:
			out[k] = v
		}
	}
	return out
}

// Has reports whether the property is present.
func (p InstanceProperties) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Remove deletes the property.
func (p InstanceProperties) Remove(name string) {
	delete(p, name)
}

// SetString stores a string value. Empty strings remove the property so that
// "not supplied" and "empty" compare equal.
func (p InstanceProperties) SetString(name, value string) InstanceProperties {
	if value == "" {
		delete(p, name)
		return p
	}
	p[name] = value
	return p
}

// SetInt stores an integer value.
func (p InstanceProperties) SetInt(name string, value int64) InstanceProperties {
	p[name] = value
	return p
}

// SetBool stores a boolean value.
func (p InstanceProperties) SetBool(name string, value bool) InstanceProperties {
	p[name] = value
	return p
}

// SetTime stores a timestamp in UTC. A zero time removes the property.
func (p InstanceProperties) SetTime(name string, value time.Time) InstanceProperties {
	if value.IsZero() {
		delete(p, name)
		return p
	}
	p[name] = value.UTC()
	return p
}

// SetStringMap stores a string map. An empty map removes the property.
func (p InstanceProperties) SetStringMap(name string, value map[string]string) InstanceProperties {
	if len(value) == 0 {
		delete(p, name)
		return p
	}
	p[name] = maps.Clone(value)
	return p
}

// SetStringSlice stores a string slice. An empty slice removes the property.
func (p InstanceProperties) SetStringSlice(name string, value []string) InstanceProperties {
	if len(value) == 0 {
		delete(p, name)
		return p
	}
	p[name] = slices.Clone(value)
	return p
}

// GetString returns the string value of the property or "".
func (p InstanceProperties) GetString(name string) string {
	switch v := p[name].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// GetInt returns the integer value of the property or 0.
func (p InstanceProperties) GetInt(name string) int64 {
	switch v := p[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, _ := v.Float64()
			return int64(math.Round(f))
		}
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	default:
		return 0
	}
}

// GetBool returns the boolean value of the property or false.
func (p InstanceProperties) GetBool(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// GetTime returns the time value of the property or the zero time.
func (p InstanceProperties) GetTime(name string) time.Time {
	switch v := p[name].(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return v.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	default:
		return time.Time{}
	}
}

// GetStringMap returns the string map value of the property or nil.
func (p InstanceProperties) GetStringMap(name string) map[string]string {
	switch v := p[name].(type) {
	case map[string]string:
		return maps.Clone(v)
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
		return out
	default:
		return nil
	}
}

// GetStringSlice returns the string slice value of the property or nil.
func (p InstanceProperties) GetStringSlice(name string) []string {
	switch v := p[name].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, val := range v {
			out = append(out, fmt.Sprint(val))
		}
		return out
	default:
		return nil
	}
}

// StringValues returns the names and values of every string-like property.
// It is used for regular-expression searches over a bag.
func (p InstanceProperties) StringValues() map[string]string {
	out := make(map[string]string)
	for k, v := range p {
		switch val := v.(type) {
		case string:
			out[k] = val
		case []string:
			for i, s := range val {
				out[fmt.Sprintf("%s[%d]", k, i)] = s
			}
		case []any:
			for i, s := range val {
				if str, ok := s.(string); ok {
					out[fmt.Sprintf("%s[%d]", k, i)] = str
				}
			}
		}
	}
	return out
}

// Merge copies every property of update into a clone of p. Properties of
// update win.
func (p InstanceProperties) Merge(update InstanceProperties) InstanceProperties {
	out := p.Clone()
	if out == nil {
		out = NewInstanceProperties()
	}
	for k, v := range update.Clone() {
		out[k] = v
	}
	return out
}

// Equal compares two bags by normalised value.
func (p InstanceProperties) Equal(other InstanceProperties) bool {
	if len(p) != len(other) {
		return false
	}
	for k := range p {
		if !other.Has(k) || !p.EqualProperty(other, k) {
			return false
		}
	}
	return true
}

// EqualProperty compares one property of p and other by normalised value.
func (p InstanceProperties) EqualProperty(other InstanceProperties, name string) bool {
	a, aok := p[name]
	b, bok := other[name]
	if !aok || !bok {
		return aok == bok
	}
	switch a.(type) {
	case time.Time, *time.Time:
		return p.GetTime(name).Equal(other.GetTime(name))
	case int, int32, int64, float64, json.Number:
		return p.GetInt(name) == other.GetInt(name)
	case bool:
		return p.GetBool(name) == other.GetBool(name)
	case map[string]string, map[string]any:
		return maps.Equal(p.GetStringMap(name), other.GetStringMap(name))
	case []string, []any:
		return slices.Equal(p.GetStringSlice(name), other.GetStringSlice(name))
	}
	switch b.(type) {
	case time.Time, *time.Time:
		return p.GetTime(name).Equal(other.GetTime(name))
	case int, int32, int64, float64, json.Number:
		return p.GetInt(name) == other.GetInt(name)
	}
	return p.GetString(name) == other.GetString(name)
}
