package stores

import (
	"context"
	"slices"
	"sync"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

type memoryHistory struct {
	mu    sync.RWMutex
	data  map[string]aigc.Contents
	limit int
}

func newMemoryHistory(limit int) *memoryHistory {
	return &memoryHistory{data: make(map[string]aigc.Contents), limit: limit}
}

type memConversation struct {
	id string
	mh *memoryHistory
}

func (s *memConversation) GetID() string {
	return s.id
}

func (s *memConversation) AddHistory(ctx context.Context, items ...aigc.Content) error {
	s.mh.mu.Lock()
	defer s.mh.mu.Unlock()
	data := append(slices.Clone(s.mh.data[s.id]), items...)
	if s.mh.limit > 0 {
		data = slices.Clone(data.Recently(s.mh.limit))
	}
	s.mh.data[s.id] = data
	return nil
}

func (s *memConversation) ListHistory(ctx context.Context) (aigc.Contents, error) {
	s.mh.mu.RLock()
	defer s.mh.mu.RUnlock()
	return slices.Clone(s.mh.data[s.id]), nil
}

func (s *memConversation) ClearHistory(ctx context.Context) error {
	s.mh.mu.Lock()
	defer s.mh.mu.Unlock()
	delete(s.mh.data, s.id)
	return nil
}
