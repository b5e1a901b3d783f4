package qdrantdb

import (
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// lookup resolves a dotted path such as "metadata.url" inside a point payload
func lookup(payload map[string]*qdrant.Value, path string) (*qdrant.Value, bool) {
	if path == "" || payload == nil {
		return nil, false
	}
	if v, ok := payload[path]; ok {
		return v, true
	}

	head, rest, nested := strings.Cut(path, ".")
	v, ok := payload[head]
	if !ok || !nested {
		return nil, false
	}
	inner := v.GetStructValue()
	if inner == nil {
		return nil, false
	}
	return lookup(inner.GetFields(), rest)
}

// stringAt returns the value at path rendered as a string, or "" when absent
func stringAt(payload map[string]*qdrant.Value, path string) string {
	v, ok := lookup(payload, path)
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}

// intAt returns the value at path as an integer; numeric strings are accepted
func intAt(payload map[string]*qdrant.Value, path string) int64 {
	v, ok := lookup(payload, path)
	if !ok {
		return 0
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return int64(k.DoubleValue)
	case *qdrant.Value_StringValue:
		n, _ := strconv.ParseInt(k.StringValue, 10, 64)
		return n
	default:
		return 0
	}
}

// firstString returns the first non-empty string among paths
func firstString(payload map[string]*qdrant.Value, paths ...string) string {
	for _, p := range paths {
		if s := stringAt(payload, p); s != "" {
			return s
		}
	}
	return ""
}
