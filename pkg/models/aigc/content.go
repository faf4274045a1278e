package aigc

import (
	"encoding/json"
	"strings"
)

// roles of wire turns
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// InlineData is a base64 payload sent inline with a turn.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Part is a text or an inline media payload.
// Any other member (functionCall, executableCode, thoughtSignature, ...)
// is kept verbatim in Other so model turns replay unchanged.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`

	Other map[string]json.RawMessage `json:"-"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Other)+2)
	for k, v := range p.Other {
		m[k] = v
	}
	if len(p.Text) > 0 {
		m["text"] = p.Text
	}
	if p.InlineData != nil {
		m["inlineData"] = p.InlineData
	}
	return json.Marshal(m)
}

func (p *Part) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*p = Part{}
	for k, v := range m {
		switch k {
		case "text":
			if err := json.Unmarshal(v, &p.Text); err != nil {
				return err
			}
		case "inlineData":
			if err := json.Unmarshal(v, &p.InlineData); err != nil {
				return err
			}
		default:
			if p.Other == nil {
				p.Other = make(map[string]json.RawMessage)
			}
			p.Other[k] = v
		}
	}
	return nil
}

// IsThought reports a reasoning part, which is not part of the answer text.
func (p Part) IsThought() bool {
	v, ok := p.Other["thought"]
	return ok && string(v) == "true"
}

type Parts []Part

// Content is one role-tagged turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts Parts  `json:"parts"`
}

type Contents []Content

func NewTextPart(text string) Part {
	return Part{Text: text}
}

// NewInlinePart builds a media part, data URI prefixes are dropped.
func NewInlinePart(mimeType, data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: StripDataURI(data)}}
}

// Text concatenates all text parts, other parts and thoughts contribute nothing.
func (z Parts) Text() string {
	var sb strings.Builder
	for _, p := range z {
		if p.IsThought() {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// StripDataURI returns the raw base64 payload of "data:<mime>;base64,<payload>".
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// Recently returns the last n entries.
func (z Contents) Recently(n int) Contents {
	if n <= 0 || len(z) <= n {
		return z
	}
	return z[len(z)-n:]
}
