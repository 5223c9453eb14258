// Package util provides utility functions shared across the gateway.
// It includes helpers for JSON manipulation during protocol translation,
// proxy configuration, and credential masking.
package util

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// geminiSchemaKeys are the only JSON schema keys the Gemini function
// declaration endpoint accepts.
var geminiSchemaKeys = []string{"type", "description", "properties", "required", "enum", "items"}

// SafeParseToolArgs validates a streamed tool-call argument string.
// Fragments arrive as partial JSON deltas and may end mid escape sequence;
// the helper trims a dangling `\`, `\u`, `\u0`, `\u00` tail and returns the
// input unchanged when it still does not parse. Callers forward the original
// string on failure rather than dropping the event.
func SafeParseToolArgs(input string) string {
	if input == "" {
		return input
	}
	candidate := trimDanglingEscape(input)
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return input
	}
	return candidate
}

func trimDanglingEscape(s string) string {
	// A trailing backslash run of odd length means the last escape is open.
	backslashes := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		backslashes++
	}
	if backslashes%2 == 1 {
		return s[:len(s)-1]
	}

	// An incomplete \uXXXX escape at the tail.
	for cut := 1; cut <= 5 && cut < len(s); cut++ {
		tail := s[len(s)-cut:]
		if strings.HasPrefix(tail, "\\u") && cut < 6 {
			return s[:len(s)-cut]
		}
	}
	return s
}

// SanitizeSchemaForGemini filters a tool JSON schema down to the keys the
// Gemini API accepts. The filter applies recursively over `properties` values
// and `items`. Sanitizing an already sanitized schema is a no-op.
func SanitizeSchemaForGemini(schemaJSON string) string {
	root := gjson.Parse(schemaJSON)
	if !root.IsObject() {
		return schemaJSON
	}

	out := "{}"
	for _, key := range geminiSchemaKeys {
		value := root.Get(key)
		if !value.Exists() {
			continue
		}
		switch key {
		case "properties":
			propsOut := "{}"
			value.ForEach(func(name, prop gjson.Result) bool {
				propsOut, _ = sjson.SetRaw(propsOut, escapePath(name.String()), SanitizeSchemaForGemini(prop.Raw))
				return true
			})
			out, _ = sjson.SetRaw(out, "properties", propsOut)
		case "items":
			out, _ = sjson.SetRaw(out, "items", SanitizeSchemaForGemini(value.Raw))
		default:
			out, _ = sjson.SetRaw(out, key, value.Raw)
		}
	}
	return out
}

// escapePath escapes sjson path metacharacters in a literal object key.
func escapePath(key string) string {
	replacer := strings.NewReplacer(".", "\\.", "*", "\\*", "?", "\\?", "|", "\\|", "#", "\\#", "@", "\\@")
	return replacer.Replace(key)
}

// InArray reports whether the target string is present in the list.
func InArray(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

// HideAPIKey masks the middle of a credential for logging.
func HideAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
