package jsonx_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/jsonx"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		method  jsonx.Method
		heading string
	}{
		{
			name:    "plain object",
			raw:     `  {"heading": "Budget passed"}  `,
			method:  jsonx.MethodDirect,
			heading: "Budget passed",
		},
		{
			name:    "fenced json block",
			raw:     "Here you go:\n```json\n{\"heading\": \"Rains\"}\n```\nThanks",
			method:  jsonx.MethodFenced,
			heading: "Rains",
		},
		{
			name:    "fenced block with trailing comma",
			raw:     "```\n{\"heading\": \"Rains\", \"topics\": [\"a\", \"b\",],}\n```",
			method:  jsonx.MethodFenced,
			heading: "Rains",
		},
		{
			name:    "prose around object",
			raw:     `The answer is {"heading": "Floods {north}"} as requested.`,
			method:  jsonx.MethodBraces,
			heading: "Floods {north}",
		},
		{
			name:    "largest of several objects",
			raw:     `{"a": 1} and then {"heading": "Longer object", "b": 2}`,
			method:  jsonx.MethodBraces,
			heading: "Longer object",
		},
		{
			name:    "raw newline in string needs cleanup",
			raw:     "Result: {\"heading\": \"Line one\nLine two\", \"x\": [1,],}",
			method:  jsonx.MethodCleanup,
			heading: "Line one\nLine two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, method, err := jsonx.Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.method, method)
			assert.Equal(t, tt.heading, obj["heading"])
		})
	}
}

func TestExtract_Failure(t *testing.T) {
	raw := "I cannot help with that. " + strings.Repeat("x", 600)

	_, _, err := jsonx.Extract(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsonx.ErrUnparseable))

	var perr *jsonx.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Snippet, 500)
	assert.True(t, strings.HasPrefix(perr.Snippet, "I cannot help"))
}

func TestSnippet_MultiByte(t *testing.T) {
	raw := "a" + strings.Repeat("अ", 300)

	got := jsonx.Snippet(raw)
	assert.Len(t, got, 499)
	assert.True(t, utf8.ValidString(got))
	assert.NotContains(t, got, "�")
	assert.True(t, strings.HasPrefix(raw, got))

	_, _, err := jsonx.Extract(raw)
	var perr *jsonx.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, got, perr.Snippet)

	assert.Equal(t, "short", jsonx.Snippet("short"))
}

func TestExtract_EmptyAndArray(t *testing.T) {
	_, _, err := jsonx.Extract("   ")
	assert.ErrorIs(t, err, jsonx.ErrUnparseable)

	_, _, err = jsonx.Extract(`["not", "an", "object"]`)
	assert.ErrorIs(t, err, jsonx.ErrUnparseable)
}

func TestRemoveTrailingCommas(t *testing.T) {
	assert.Equal(t, `{"a": [1, 2]}`, jsonx.RemoveTrailingCommas(`{"a": [1, 2,],}`))
	assert.Equal(t, `{"a": 1}`, jsonx.RemoveTrailingCommas("{\"a\": 1,\n}"))
}

func TestEscapeNewlinesInStrings(t *testing.T) {
	in := "{\n  \"a\": \"x\ny\",\n  \"b\": \"tab\there\"\n}"
	want := "{\n  \"a\": \"x\\ny\",\n  \"b\": \"tab\\there\"\n}"
	assert.Equal(t, want, jsonx.EscapeNewlinesInStrings(in))

	// escaped quotes do not end the literal
	assert.Equal(t, `{"a": "say \"hi\"\n"}`, jsonx.EscapeNewlinesInStrings("{\"a\": \"say \\\"hi\\\"\n\"}"))
}

func TestStripControlChars(t *testing.T) {
	assert.Equal(t, `{"a": "bc"}`, jsonx.StripControlChars("{\"a\": \"b\x00c\x1f\"}"))
}

func TestFieldHelpers(t *testing.T) {
	obj := map[string]any{
		"s":    "text",
		"n":    float64(3),
		"list": []any{"a", 1.0, "b"},
	}
	assert.Equal(t, "text", jsonx.String(obj, "s"))
	assert.Equal(t, "3", jsonx.String(obj, "n"))
	assert.Equal(t, "", jsonx.String(obj, "missing"))
	assert.Equal(t, []string{"a", "b"}, jsonx.Strings(obj, "list"))
	assert.Equal(t, []string{"text"}, jsonx.Strings(obj, "s"))
	assert.Nil(t, jsonx.Strings(obj, "missing"))
}
