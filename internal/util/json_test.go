package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestSafeParseToolArgs(t *testing.T) {
	assert.Equal(t, `{"a":1}`, SafeParseToolArgs(`{"a":1}`))
	assert.Equal(t, "", SafeParseToolArgs(""))

	// Invalid JSON is forwarded unchanged.
	assert.Equal(t, `{"a":`, SafeParseToolArgs(`{"a":`))

	// A dangling escape is trimmed only when the remainder parses.
	assert.Equal(t, `"abc"`, SafeParseToolArgs(`"abc"\`))
}

func TestSanitizeSchemaForGemini(t *testing.T) {
	schema := `{
		"type": "object",
		"$schema": "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
		"required": ["q"],
		"properties": {
			"q": {"type": "string", "format": "uri", "enum": ["a", "b"]},
			"tags": {"type": "array", "items": {"type": "string", "minLength": 1}}
		}
	}`

	out := gjson.Parse(SanitizeSchemaForGemini(schema))

	assert.Equal(t, "object", out.Get("type").String())
	assert.False(t, out.Get("$schema").Exists())
	assert.False(t, out.Get("additionalProperties").Exists())
	assert.Equal(t, "q", out.Get("required.0").String())
	assert.Equal(t, "string", out.Get("properties.q.type").String())
	assert.False(t, out.Get("properties.q.format").Exists())
	assert.Equal(t, "a", out.Get("properties.q.enum.0").String())
	assert.Equal(t, "string", out.Get("properties.tags.items.type").String())
	assert.False(t, out.Get("properties.tags.items.minLength").Exists())
}

func TestSanitizeSchemaForGeminiFixedPoint(t *testing.T) {
	schema := `{"type":"object","properties":{"x":{"type":"number"}},"additionalProperties":false}`
	once := SanitizeSchemaForGemini(schema)
	assert.Equal(t, once, SanitizeSchemaForGemini(once))
}

func TestInArray(t *testing.T) {
	assert.True(t, InArray([]string{"a", "b"}, "b"))
	assert.False(t, InArray([]string{"a", "b"}, "c"))
	assert.False(t, InArray(nil, "a"))
}

func TestHideAPIKey(t *testing.T) {
	assert.Equal(t, "****", HideAPIKey("short"))
	assert.Equal(t, "sk-1****wxyz", HideAPIKey("sk-1234567890wxyz"))
}
