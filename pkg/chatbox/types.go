package chatbox

import (
	"errors"
	"slices"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

// message authors
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// texts rendered as bot messages
const (
	WelcomeText           = aigc.DefaultWelcome
	NoReplyText           = "ไม่ได้รับคำตอบจากระบบ"
	ConnectivityErrorText = "เกิดข้อผิดพลาดในการเชื่อมต่อ Server"

	titleFormat   = "การสนทนาที่ %d"
	subtitleRunes = 25
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoSuchAttachment     = errors.New("no such attachment")
)

// Attachment is a file read into memory, immutable once created.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // raw base64, no data URI prefix
	IsImage  bool   `json:"isImage"`
	Preview  string `json:"preview,omitempty"` // data URI, images only
}

// Label returns a short kind badge such as PDF or DOC
func (a Attachment) Label() string {
	if a.IsImage {
		return "IMG"
	}
	return aigc.LabelMIME(a.MimeType)
}

type Message struct {
	Role        string       `json:"role"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Initial     bool         `json:"initial,omitempty"`
}

type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

func (c *Conversation) clone() Conversation {
	out := Conversation{ID: c.ID, Title: c.Title, Messages: make([]Message, len(c.Messages))}
	for i, m := range c.Messages {
		m.Attachments = slices.Clone(m.Attachments)
		out.Messages[i] = m
	}
	return out
}

// Summary is one sidebar entry
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Active   bool   `json:"active"`
}

func (c *Conversation) summary(active bool) Summary {
	sub := "..."
	if n := len(c.Messages); n > 0 && len(c.Messages[n-1].Text) > 0 {
		r := []rune(c.Messages[n-1].Text)
		if len(r) > subtitleRunes {
			r = r[:subtitleRunes]
		}
		sub = string(r)
	}
	return Summary{ID: c.ID, Title: c.Title, Subtitle: sub, Active: active}
}

// ComposerItem is one pending attachment slot, possibly still loading
type ComposerItem struct {
	Name       string     `json:"name"`
	Loading    bool       `json:"loading"`
	Attachment Attachment `json:"attachment"`
}

// ComposerState is the unsent input
type ComposerState struct {
	Text  string         `json:"text"`
	Items []ComposerItem `json:"items"`
}
