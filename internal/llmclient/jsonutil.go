package llmclient

import (
	"regexp"
	"strings"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*\\n?```")

// ExtractJSON pulls a JSON object out of raw LLM text: it strips a
// surrounding markdown code fence (optionally tagged "json") if present,
// otherwise returns the trimmed content unchanged. Trailing commas and
// `//` line comments outside of string literals are cleaned up before the
// caller attempts to unmarshal, since some models emit near-JSON.
func ExtractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return cleanJSON(trimmed)
}

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

func cleanJSON(s string) string {
	s = stripLineComments(s)
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// stripLineComments removes `//` comments, respecting string boundaries so a
// URL or escape sequence inside a JSON string is never mistaken for one.
func stripLineComments(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// schemaRejectionPattern matches provider error messages indicating the
// model/endpoint does not support the response_format JSON-schema
// descriptor, triggering exactly one retry without it.
var schemaRejectionPattern = regexp.MustCompile(`(?i)response_format|structured output|json_schema|schema`)

func isSchemaRejection(msg string) bool {
	return schemaRejectionPattern.MatchString(msg)
}
