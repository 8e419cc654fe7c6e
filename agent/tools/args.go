package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// 模型给出的时间格式，不带时区时按配置时区解释
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func str(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func integer(args map[string]any, key string, def int) int {
	switch x := args[key].(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return def
}

func boolean(args map[string]any, key string, def bool) bool {
	switch x := args[key].(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	}
	return def
}

// list 接受 JSON 数组或逗号分隔的字符串
func list(args map[string]any, key string) []string {
	var raw []string
	switch x := args[key].(type) {
	case []any:
		for _, v := range x {
			raw = append(raw, fmt.Sprint(v))
		}
	case []string:
		raw = x
	case string:
		raw = strings.Split(x, ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use ISO format like 2025-01-31T15:00:00", value)
}

func param(typ schema.DataType, desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: typ, Desc: desc, Required: required}
}

func fail(format string, a ...any) *Result {
	return &Result{OK: false, Message: fmt.Sprintf(format, a...)}
}
