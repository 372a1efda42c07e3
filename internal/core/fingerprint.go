package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint derives the cache key for a request. It is pure: parameter order, key and value
// casing, Unicode compatibility forms and whitespace do not change the result.
// Empty or unsupported values collapse to a placeholder instead of failing.
func Fingerprint(feature Feature, params map[string]any) string {
	var b strings.Builder
	writeField(&b, NormalizeText(string(feature)))
	writeField(&b, canonicalMap(params))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeText applies NFKC, case folding and whitespace collapsing
func NormalizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// writeField length-prefixes a component so separators inside values stay unambiguous
func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func canonicalMap(m map[string]any) string {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		value := canonicalValue(v)
		if value == "" {
			continue
		}
		var b strings.Builder
		writeField(&b, NormalizeText(k))
		writeField(&b, value)
		pairs = append(pairs, b.String())
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return NormalizeText(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return NormalizeText(t.String())
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return formatNumber(float64(t))
	case int32:
		return formatNumber(float64(t))
	case int64:
		return formatNumber(float64(t))
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return canonicalSet(items)
	case []any:
		return canonicalSet(t)
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
		return canonicalMap(t)
	default:
		return NormalizeText(fmt.Sprint(t))
	}
}

// canonicalSet treats list parameters as unordered sets
func canonicalSet(items []any) string {
	values := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		value := canonicalValue(item)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	if len(values) == 0 {
		return ""
	}
	sort.Strings(values)

	var b strings.Builder
	b.WriteByte('[')
	for _, value := range values {
		writeField(&b, value)
	}
	b.WriteByte(']')
	return b.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
