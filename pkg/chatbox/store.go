package chatbox

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type Option func(*Store)

// WithSender sets the transport used by Send
func WithSender(sd Sender) Option {
	return func(s *Store) { s.sender = sd }
}

// WithMaxAttachments caps pending attachments, 1 means a new selection
// replaces the previous one, 0 means unlimited.
func WithMaxAttachments(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxFiles = n
		}
	}
}

// WithOnChange registers a callback fired after every visible state change.
// It runs outside the store lock.
func WithOnChange(fn func()) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithWelcome replaces the seed bot message of new conversations
func WithWelcome(text string) Option {
	return func(s *Store) {
		if len(text) > 0 {
			s.welcome = text
		}
	}
}

// Store holds the conversation set and the composer of one chat client.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	convs    []*Conversation
	activeID string

	text        string
	slots       []*slot
	gen         uint64
	inputResets int

	pending int

	maxFiles int
	welcome  string
	sender   Sender
	onChange func()
}

func New(opts ...Option) *Store {
	s := &Store{welcome: WelcomeText}
	for _, opt := range opts {
		opt(s)
	}
	c := s.newConversationLocked()
	s.activeID = c.ID
	return s
}

func (s *Store) newConversationLocked() *Conversation {
	c := &Conversation{
		ID:       uuid.NewString(),
		Title:    fmt.Sprintf(titleFormat, len(s.convs)+1),
		Messages: []Message{{Role: RoleBot, Text: s.welcome, Initial: true}},
	}
	s.convs = append(s.convs, c)
	return c
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// NewConversation creates a conversation, activates it and resets the composer.
func (s *Store) NewConversation() Conversation {
	s.mu.Lock()
	c := s.newConversationLocked()
	s.activeID = c.ID
	s.resetComposerLocked()
	out := c.clone()
	s.mu.Unlock()

	s.notify()
	return out
}

// Switch activates an existing conversation and resets the composer.
func (s *Store) Switch(id string) error {
	s.mu.Lock()
	if s.findLocked(id) == nil {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	s.activeID = id
	s.resetComposerLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) findLocked(id string) *Conversation {
	for _, c := range s.convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// activeLocked never returns nil, an unknown active id falls back to the first conversation
func (s *Store) activeLocked() *Conversation {
	if c := s.findLocked(s.activeID); c != nil {
		return c
	}
	return s.convs[0]
}

// Active returns a copy of the active conversation
func (s *Store) Active() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked().clone()
}

// Get returns a copy of a conversation by id
func (s *Store) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		return c.clone(), nil
	}
	return Conversation{}, ErrConversationNotFound
}

// Conversations lists sidebar summaries in creation order
func (s *Store) Conversations() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.activeLocked()
	out := make([]Summary, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.summary(c == active)
	}
	return out
}

// Pending reports whether a reply is still awaited
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

func (s *Store) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.notify()
}

func (s *Store) resetComposerLocked() {
	s.text = ""
	s.clearAttachmentsLocked()
}
