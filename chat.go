package relayclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is one element of a multi-part message: text, an image
// by URL, or an image embedded as a data URI.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference. URL may be a regular https URL
// or a data: URI for embedded content.
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image-by-URL content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// ImageDataPart builds an image part embedding base64 data as a data URI.
func ImageDataPart(mediaType, base64Data string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: "data:" + mediaType + ";base64," + base64Data}}
}

// Content is a message body: either plain text or an ordered list of
// content parts. It marshals to a JSON string in the plain case and to
// an array otherwise, matching the provider wire shape.
type Content struct {
	text  string
	parts []ContentPart
}

// Text builds plain-text content.
func Text(s string) Content { return Content{text: s} }

// Parts builds multi-part content.
func Parts(parts ...ContentPart) Content { return Content{parts: parts} }

// Text returns the plain-text form of the content. For multi-part
// content it concatenates the text parts.
func (c Content) Text() string {
	if c.parts == nil {
		return c.text
	}
	var out string
	for _, p := range c.parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.parts != nil {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Content{text: s}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("content is neither string nor parts: %w", err)
	}
	*c = Content{parts: parts}
	return nil
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: Text(text)}
}

// UserMessage builds a user-role message.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: Text(text)}
}

// UserMessageParts builds a multi-part user-role message.
func UserMessageParts(parts ...ContentPart) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: Parts(parts...)}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: Text(text)}
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes one callable function and the JSON schema of
// its parameters.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolFromStruct derives a function tool whose parameter schema is
// reflected from the given struct value. Field names and optionality
// follow the struct's json tags.
func ToolFromStruct(name, description string, params any) (Tool, error) {
	r := &jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(params)
	schema.Version = "" // providers reject $schema inside tool parameters
	b, err := json.Marshal(schema)
	if err != nil {
		return Tool{}, fmt.Errorf("reflect tool schema: %w", err)
	}
	return Tool{Type: "function", Function: ToolFunction{Name: name, Description: description, Parameters: b}}, nil
}

// ChatRequest is the provider-agnostic chat completion envelope. The
// provider itself is addressed by path, not by the body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
}

// ChatChoice is one completed alternative in a response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// Usage is the token accounting summary attached to a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a completed chat completion.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatDelta is the incremental fragment carried by one stream chunk.
type ChatDelta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChatStreamChunk is one decoded streaming event.
type ChatStreamChunk struct {
	ID           string    `json:"id"`
	Delta        ChatDelta `json:"delta"`
	FinishReason string    `json:"finish_reason,omitempty"`
}

// canonicalJSON encodes v with all object keys sorted, recursively.
// The request signature hashes these exact bytes and the relay
// recomputes the hash on its side, so encoding must be deterministic
// and match the relay's canonical form. Numbers pass through as
// json.Number to avoid float round-tripping.
func canonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}
