// Package jsonx recovers a JSON object from free-form model output. Models
// wrap answers in markdown fences, leave trailing commas and emit raw
// newlines inside strings; Extract tries progressively looser strategies.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var ErrUnparseable = errors.New("failed to parse JSON from model response")

type Method string

const (
	MethodDirect  Method = "direct"
	MethodFenced  Method = "fenced"
	MethodBraces  Method = "braces"
	MethodCleanup Method = "cleanup"
)

const snippetLen = 500

type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	return ErrUnparseable.Error()
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseable
}

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	controlChars  = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// Extract returns the first object any strategy can decode, and which
// strategy produced it.
func Extract(raw string) (map[string]any, Method, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, "", &ParseError{}
	}

	if obj, ok := decode(text); ok {
		return obj, MethodDirect, nil
	}

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if obj, ok := decode(candidate); ok {
			return obj, MethodFenced, nil
		}
		if obj, ok := decode(RemoveTrailingCommas(candidate)); ok {
			return obj, MethodFenced, nil
		}
	}

	candidates := balancedObjects(text)
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	for _, c := range candidates {
		if obj, ok := decode(StripControlChars(c)); ok {
			return obj, MethodBraces, nil
		}
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		cleaned := EscapeNewlinesInStrings(RemoveTrailingCommas(text[start : end+1]))
		if obj, ok := decode(cleaned); ok {
			return obj, MethodCleanup, nil
		}
	}

	return nil, "", &ParseError{Snippet: Snippet(raw)}
}

// Snippet truncates raw to at most snippetLen bytes, cutting on a rune
// boundary.
func Snippet(raw string) string {
	if len(raw) <= snippetLen {
		return raw
	}
	n := snippetLen
	for n > 0 && !utf8.RuneStart(raw[n]) {
		n--
	}
	return raw[:n]
}

func decode(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedObjects collects every top-level {...} span. Braces inside string
// literals do not count.
func balancedObjects(s string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
			}
		}
	}
	return out
}

func RemoveTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

func StripControlChars(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// EscapeNewlinesInStrings escapes raw newlines, carriage returns and tabs
// that appear inside string literals. Whitespace between tokens is kept.
func EscapeNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		if !inString {
			if r == '"' {
				inString = true
			}
			b.WriteRune(r)
			continue
		}
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = false
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// String renders an object field as text, tolerating non-string values.
func String(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Strings renders an array field; a single string is accepted as a
// one-element list.
func Strings(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
