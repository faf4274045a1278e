package stores

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

// DefaultKey is the history shared by callers without a conversation id.
const DefaultKey = "default"

var (
	ErrInvalidID = errors.New("invalid conversation id")

	reConversationID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Conversation is one rolling history window sent upstream on every turn.
type Conversation interface {
	GetID() string
	// AddHistory appends turns in order and trims to the newest limit entries.
	AddHistory(ctx context.Context, items ...aigc.Content) error
	ListHistory(ctx context.Context) (aigc.Contents, error)
	ClearHistory(ctx context.Context) error
}

// NormalizeID maps an empty id to DefaultKey and rejects malformed ones.
func NormalizeID(id string) (string, error) {
	if len(id) == 0 {
		return DefaultKey, nil
	}
	if !reConversationID.MatchString(id) {
		return "", ErrInvalidID
	}
	return id, nil
}

type conversation struct {
	id       string
	rc       RedisClient
	limit    int
	lifetime time.Duration
}

func (s *conversation) GetID() string {
	return s.id
}

func (s *conversation) AddHistory(ctx context.Context, items ...aigc.Content) error {
	if len(items) == 0 {
		return nil
	}
	key := s.getKey()
	values := make([]any, len(items))
	for i := range items {
		values[i] = &items[i]
	}
	_, err := s.rc.TxPipelined(ctx, func(pipe RedisPipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.limit > 0 {
			pipe.LTrim(ctx, key, int64(-s.limit), -1)
		}
		if s.lifetime > 0 {
			pipe.Expire(ctx, key, s.lifetime)
		}
		return nil
	})
	if err != nil {
		logger().Infow("add history fail", "key", key, "err", err)
		return err
	}
	logger().Debugw("add history ok", "key", key, "items", len(items))
	return nil
}

func (s *conversation) ListHistory(ctx context.Context) (data aigc.Contents, err error) {
	key := s.getKey()
	ss := s.rc.LRange(ctx, key, 0, -1)
	err = ss.ScanSlice(&data)
	return
}

func (s *conversation) ClearHistory(ctx context.Context) error {
	return s.rc.Del(ctx, s.getKey()).Err()
}

func (s *conversation) getKey() string {
	return "lionbot-convs-" + s.GetID()
}
