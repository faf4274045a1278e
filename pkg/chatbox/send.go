package chatbox

import (
	"context"
	"strings"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

type FilePayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Payload is the body posted to the chat endpoint
type Payload struct {
	ConversationID string        `json:"conversationId,omitempty"`
	Message        string        `json:"message"`
	Files          []FilePayload `json:"files,omitempty"`
}

// Sender delivers a payload and returns the reply text.
type Sender interface {
	Chat(ctx context.Context, p *Payload) (string, error)
}

// Send posts the composer content of the active conversation.
// It returns ok=false without touching any state when there is nothing to send.
// Otherwise the user message is appended and the composer cleared before
// returning; done is closed once the bot message has been appended.
func (s *Store) Send(ctx context.Context) (done <-chan struct{}, ok bool) {
	s.mu.Lock()
	atts := s.loadedLocked()
	text := s.text
	if len(strings.TrimSpace(text)) == 0 && len(atts) == 0 {
		s.mu.Unlock()
		return nil, false
	}

	conv := s.activeLocked()
	conv.Messages = append(conv.Messages, Message{Role: RoleUser, Text: text, Attachments: atts})

	p := &Payload{ConversationID: conv.ID, Message: text}
	for _, a := range atts {
		p.Files = append(p.Files, FilePayload{MimeType: a.MimeType, Data: aigc.StripDataURI(a.Data)})
	}

	s.text = ""
	s.clearAttachmentsLocked()
	s.pending++
	convID, sender := conv.ID, s.sender
	s.mu.Unlock()
	s.notify()

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		reply := deliver(ctx, sender, p)

		s.mu.Lock()
		if c := s.findLocked(convID); c != nil {
			c.Messages = append(c.Messages, Message{Role: RoleBot, Text: reply})
		}
		s.pending--
		s.mu.Unlock()
		s.notify()
	}()
	return ch, true
}

// deliver never fails, every problem becomes a bot readable text
func deliver(ctx context.Context, sender Sender, p *Payload) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger().Warnw("sender panic", "err", rec)
			reply = ConnectivityErrorText
		}
	}()
	if sender == nil {
		return ConnectivityErrorText
	}
	reply, err := sender.Chat(ctx, p)
	if err != nil {
		logger().Infow("chat fail", "csid", p.ConversationID, "err", err)
		return ConnectivityErrorText
	}
	if len(reply) == 0 {
		return NoReplyText
	}
	return reply
}
