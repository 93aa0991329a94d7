package relayclient

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestContentMarshalsStringOrParts(t *testing.T) {
	b, err := json.Marshal(UserMessage("hi"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != `{"role":"user","content":"hi"}` {
		t.Fatalf("unexpected plain message %s", b)
	}

	b, err = json.Marshal(UserMessageParts(TextPart("look"), ImagePart("https://example.com/a.png")))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]}`
	if string(b) != want {
		t.Fatalf("unexpected parts message %s", b)
	}
}

func TestContentUnmarshalsBothForms(t *testing.T) {
	var m ChatMessage
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":"plain"}`), &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m.Content.Text() != "plain" {
		t.Fatalf("unexpected text %q", m.Content.Text())
	}

	if err := json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`), &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m.Content.Text() != "ab" {
		t.Fatalf("unexpected folded text %q", m.Content.Text())
	}

	if err := json.Unmarshal([]byte(`{"role":"user","content":42}`), &m); err == nil {
		t.Fatal("expected error for numeric content")
	}
}

func TestImageDataPartBuildsDataURI(t *testing.T) {
	p := ImageDataPart("image/png", "aGVsbG8=")
	if p.ImageURL.URL != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("unexpected data uri %q", p.ImageURL.URL)
	}
}

func TestCanonicalJSONSortsKeysRecursively(t *testing.T) {
	type inner struct {
		Zed   string `json:"zed"`
		Alpha string `json:"alpha"`
	}
	type outer struct {
		Omega int   `json:"omega"`
		Inner inner `json:"inner"`
	}
	b, err := canonicalJSON(outer{Omega: 1, Inner: inner{Zed: "z", Alpha: "a"}})
	if err != nil {
		t.Fatalf("canonical encode failed: %v", err)
	}
	if string(b) != `{"inner":{"alpha":"a","zed":"z"},"omega":1}` {
		t.Fatalf("keys not sorted: %s", b)
	}
}

func TestCanonicalJSONIsStableAcrossCalls(t *testing.T) {
	req := ChatRequest{
		Model:    "gpt-4",
		Messages: []ChatMessage{SystemMessage("be brief"), UserMessage("Hi")},
	}
	a, err := canonicalJSON(req)
	if err != nil {
		t.Fatalf("canonical encode failed: %v", err)
	}
	b, err := canonicalJSON(req)
	if err != nil {
		t.Fatalf("canonical encode failed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("unstable encoding:\n%s\n%s", a, b)
	}
}

func TestCanonicalJSONPreservesNumberText(t *testing.T) {
	temp := 0.7
	b, err := canonicalJSON(ChatRequest{Model: "m", Temperature: &temp})
	if err != nil {
		t.Fatalf("canonical encode failed: %v", err)
	}
	if !strings.Contains(string(b), `"temperature":0.7`) {
		t.Fatalf("temperature round-tripped lossily: %s", b)
	}
}

func TestToolFromStruct(t *testing.T) {
	type weatherParams struct {
		Location string `json:"location" jsonschema:"description=City name"`
		Unit     string `json:"unit,omitempty"`
	}
	tool, err := ToolFromStruct("get_weather", "Look up current weather", weatherParams{})
	if err != nil {
		t.Fatalf("tool reflection failed: %v", err)
	}
	if tool.Type != "function" || tool.Function.Name != "get_weather" {
		t.Fatalf("unexpected tool %+v", tool)
	}

	var schema map[string]any
	if err := json.Unmarshal(tool.Function.Parameters, &schema); err != nil {
		t.Fatalf("parameters not valid JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	if _, ok := props["location"]; !ok {
		t.Fatalf("location missing from schema: %v", props)
	}
	if _, ok := schema["$schema"]; ok {
		t.Fatal("$schema must be stripped from tool parameters")
	}
	required, _ := schema["required"].([]any)
	for _, r := range required {
		if r == "unit" {
			t.Fatal("omitempty field must not be required")
		}
	}
}
