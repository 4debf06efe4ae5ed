package common

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// IDs reads an array of item ids. Upstreams mix numbers and numeric strings;
// anything that is not a positive integer is skipped.
func IDs(value gjson.Result) []int64 {
	if !value.IsArray() {
		return nil
	}
	items := value.Array()
	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, ok := ParseID(item)
		if !ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func ParseID(value gjson.Result) (int64, bool) {
	var id int64
	switch value.Type {
	case gjson.Number:
		id = value.Int()
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}

func OptionalString(value gjson.Result) *string {
	if !value.Exists() || value.Type == gjson.Null {
		return nil
	}
	out := value.String()
	return &out
}

func OptionalFloat(value gjson.Result) *float64 {
	if value.Type != gjson.Number {
		return nil
	}
	out := value.Float()
	return &out
}

// OptionalInt accepts numbers and numeric strings, e.g. fileSizeBytes.
func OptionalInt(value gjson.Result) *int64 {
	switch value.Type {
	case gjson.Number:
		out := value.Int()
		return &out
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value.Str), 10, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func Strings(value gjson.Result) []string {
	if !value.IsArray() {
		return nil
	}
	items := value.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text := strings.TrimSpace(item.String()); text != "" {
			out = append(out, text)
		}
	}
	return out
}
