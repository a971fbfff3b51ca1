package llmclient

import "testing"

func TestExtractJSON_FencedBlock(t *testing.T) {
	raw := "Here you go:\n```json\n{\"files\": [{\"path\": \"a.txt\", \"content\": \"hi\"}]}\n```\n"
	got := ExtractJSON(raw)
	want := `{"files": [{"path": "a.txt", "content": "hi"}]}`
	if got != want {
		t.Fatalf("ExtractJSON() = %q, want %q", got, want)
	}
}

func TestExtractJSON_Unfenced(t *testing.T) {
	raw := `  {"files": []}  `
	if got := ExtractJSON(raw); got != `{"files": []}` {
		t.Fatalf("ExtractJSON() = %q", got)
	}
}

func TestExtractJSON_TrailingComma(t *testing.T) {
	raw := "```json\n{\"files\": [1, 2,],}\n```"
	got := ExtractJSON(raw)
	want := `{"files": [1, 2]}`
	if got != want {
		t.Fatalf("ExtractJSON() = %q, want %q", got, want)
	}
}

func TestStripLineComments_RespectsStrings(t *testing.T) {
	in := `{"url": "http://example.com", "n": 1} // trailing comment`
	got := stripLineComments(in)
	want := "{\"url\": \"http://example.com\", \"n\": 1} \n"
	if got != want {
		t.Fatalf("stripLineComments() = %q, want %q", got, want)
	}
}

func TestIsSchemaRejection(t *testing.T) {
	cases := map[string]bool{
		"this model does not support response_format": true,
		"structured output is not supported":           true,
		"invalid json_schema provided":                 true,
		"rate limit exceeded":                           false,
	}
	for msg, want := range cases {
		if got := isSchemaRejection(msg); got != want {
			t.Errorf("isSchemaRejection(%q) = %v, want %v", msg, got, want)
		}
	}
}
