package stores

import (
	"sync"
	"time"

	"github.com/lionbot/lionbot/pkg/settings"
)

// Storage hands out conversation histories and per-conversation turn locks.
type Storage interface {
	Conversation(id string) Conversation
	// Lock serializes turns of one conversation, call the returned func to release.
	Lock(id string) (unlock func())
}

// vars ...
var (
	_ Storage = (*Wrap)(nil)

	stoOnce sync.Once
	stoW    *Wrap
)

// Wrap implements Storage
type Wrap struct {
	rc RedisClient
	mh *memoryHistory

	limit    int
	lifetime time.Duration

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewWithRedis return a redis backed Wrap
func NewWithRedis(rc RedisClient, limit int, lifetime time.Duration) *Wrap {
	return &Wrap{rc: rc, limit: limit, lifetime: lifetime, locks: make(map[string]*keyLock)}
}

// NewWithMemory return a process memory backed Wrap
func NewWithMemory(limit int) *Wrap {
	return &Wrap{mh: newMemoryHistory(limit), limit: limit, locks: make(map[string]*keyLock)}
}

// Sgt start and return a singleton instance of Storage
func Sgt() *Wrap {
	stoOnce.Do(func() {
		cfg := settings.Current
		if len(cfg.RedisURI) > 0 {
			stoW = NewWithRedis(SgtRC(), cfg.HistoryLimit, cfg.HistoryLifetime)
			logger().Infow("history store", "kind", "redis", "limit", cfg.HistoryLimit)
		} else {
			stoW = NewWithMemory(cfg.HistoryLimit)
			logger().Infow("history store", "kind", "memory", "limit", cfg.HistoryLimit)
		}
	})
	return stoW
}

// Redis returns the redis client or nil with memory storage
func (w *Wrap) Redis() RedisClient {
	return w.rc
}

func (w *Wrap) Conversation(id string) Conversation {
	if w.rc != nil {
		return &conversation{id: id, rc: w.rc, limit: w.limit, lifetime: w.lifetime}
	}
	return &memConversation{id: id, mh: w.mh}
}

func (w *Wrap) Lock(id string) func() {
	w.locksMu.Lock()
	kl, ok := w.locks[id]
	if !ok {
		kl = new(keyLock)
		w.locks[id] = kl
	}
	kl.refs++
	w.locksMu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		w.locksMu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(w.locks, id)
		}
		w.locksMu.Unlock()
	}
}

func (w *Wrap) Close() {
	if w.rc != nil {
		_ = w.rc.Close()
	}
}
