package chatbox

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu    sync.Mutex
	got   []*Payload
	gate  chan struct{}
	reply string
	err   error
}

func (s *stubSender) Chat(ctx context.Context, p *Payload) (string, error) {
	s.mu.Lock()
	s.got = append(s.got, p)
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return s.reply, s.err
}

func (s *stubSender) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}

func attachText(t *testing.T, s *Store, name, body string) {
	t.Helper()
	rd := s.Attach(context.Background(), name, "text/plain", strings.NewReader(body))
	wait(t, rd.Done())
	require.True(t, rd.Applied())
}

func lastMessage(c Conversation) Message {
	return c.Messages[len(c.Messages)-1]
}

func TestNewStore(t *testing.T) {
	s := New()
	c := s.Active()
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "การสนทนาที่ 1", c.Title)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, RoleBot, c.Messages[0].Role)
	assert.True(t, c.Messages[0].Initial)
	assert.Equal(t, WelcomeText, c.Messages[0].Text)

	list := s.Conversations()
	require.Len(t, list, 1)
	assert.True(t, list[0].Active)
	assert.Equal(t, []rune(WelcomeText)[:25], []rune(list[0].Subtitle))
	assert.False(t, s.Pending())
}

func TestSendEmptyIsNoop(t *testing.T) {
	sd := &stubSender{reply: "x"}
	var changes atomic.Int32
	s := New(WithSender(sd), WithOnChange(func() { changes.Add(1) }))
	s.NewConversation()
	changes.Store(0)

	before := []Conversation{}
	for _, sum := range s.Conversations() {
		c, err := s.Get(sum.ID)
		require.NoError(t, err)
		before = append(before, c)
	}

	for _, text := range []string{"", "   ", "\n\t"} {
		s.SetText(text)
		changes.Store(0)
		done, ok := s.Send(context.Background())
		assert.False(t, ok)
		assert.Nil(t, done)
		assert.Equal(t, text, s.Composer().Text)
		assert.Zero(t, changes.Load())
	}

	for _, c := range before {
		after, err := s.Get(c.ID)
		require.NoError(t, err)
		assert.Equal(t, c, after)
	}
	assert.False(t, s.Pending())
	assert.Zero(t, sd.calls())
}

func TestSendClearsComposerBeforeReply(t *testing.T) {
	sd := &stubSender{reply: "ok", gate: make(chan struct{})}
	s := New(WithSender(sd))

	attachText(t, s, "a.txt", "alpha")
	attachText(t, s, "b.txt", "beta")
	s.SetText("two files")
	require.Len(t, s.PendingAttachments(), 2)

	done, ok := s.Send(context.Background())
	require.True(t, ok)

	// optimistic user message, empty composer, reply still pending
	c := s.Active()
	user := lastMessage(c)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "two files", user.Text)
	assert.Len(t, user.Attachments, 2)
	assert.Empty(t, s.PendingAttachments())
	assert.Empty(t, s.Composer().Items)
	assert.Equal(t, "", s.Composer().Text)
	assert.True(t, s.Pending())

	close(sd.gate)
	wait(t, done)

	assert.False(t, s.Pending())
	c = s.Active()
	require.Len(t, c.Messages, 3)
	assert.Equal(t, Message{Role: RoleBot, Text: "ok"}, lastMessage(c))

	require.Equal(t, 1, sd.calls())
	p := sd.got[0]
	assert.Equal(t, c.ID, p.ConversationID)
	assert.Equal(t, "two files", p.Message)
	require.Len(t, p.Files, 2)
	assert.Equal(t, "text/plain", p.Files[0].MimeType)
	assert.Equal(t, "YWxwaGE=", p.Files[0].Data)
}

func TestSendAttachmentOnly(t *testing.T) {
	sd := &stubSender{reply: "seen"}
	s := New(WithSender(sd))
	rd := s.Attach(context.Background(), "pic.png", "image/png", strings.NewReader("\x89PNG"))
	wait(t, rd.Done())

	done, ok := s.Send(context.Background())
	require.True(t, ok)
	wait(t, done)

	require.Len(t, sd.got, 1)
	assert.Equal(t, "", sd.got[0].Message)
	require.Len(t, sd.got[0].Files, 1)
	assert.False(t, strings.HasPrefix(sd.got[0].Files[0].Data, "data:"))

	msgs := s.Active().Messages
	assert.True(t, msgs[1].Attachments[0].IsImage)
	assert.True(t, strings.HasPrefix(msgs[1].Attachments[0].Preview, "data:image/png;base64,"))
}

func TestSendFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		want   string
	}{
		{"empty reply", &stubSender{}, NoReplyText},
		{"transport", &stubSender{err: errors.New("connection refused")}, ConnectivityErrorText},
		{"no sender", nil, ConnectivityErrorText},
		{"panic", panicSender{}, ConnectivityErrorText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithSender(tt.sender))
			s.SetText("hello")
			done, ok := s.Send(context.Background())
			require.True(t, ok)
			wait(t, done)
			assert.Equal(t, Message{Role: RoleBot, Text: tt.want}, lastMessage(s.Active()))
			assert.False(t, s.Pending())
		})
	}
}

type panicSender struct{}

func (panicSender) Chat(context.Context, *Payload) (string, error) { panic("boom") }

func TestPendingClearedWithReply(t *testing.T) {
	sd := &stubSender{reply: "pong"}
	var s *Store
	var seen atomic.Bool
	var bad atomic.Bool
	s = New(WithSender(sd), WithOnChange(func() {
		if s == nil || s.Pending() {
			return
		}
		c := s.Active()
		if len(c.Messages) > 1 {
			seen.Store(true)
			if lastMessage(c).Role != RoleBot {
				bad.Store(true)
			}
		}
	}))
	s.SetText("ping")
	done, ok := s.Send(context.Background())
	require.True(t, ok)
	wait(t, done)
	assert.True(t, seen.Load())
	assert.False(t, bad.Load())
}

type gatedReader struct {
	gate chan struct{}
	r    io.Reader
}

func (g *gatedReader) Read(p []byte) (int, error) {
	<-g.gate
	return g.r.Read(p)
}

func TestStaleReadSuppressed(t *testing.T) {
	s := New()
	g := &gatedReader{gate: make(chan struct{}), r: strings.NewReader("late")}
	rd := s.Attach(context.Background(), "late.txt", "text/plain", g)

	items := s.Composer().Items
	require.Len(t, items, 1)
	assert.True(t, items[0].Loading)

	require.NoError(t, s.RemoveAttachment(0))
	assert.Equal(t, 1, s.InputResets())

	close(g.gate)
	wait(t, rd.Done())
	assert.False(t, rd.Applied())
	assert.Empty(t, s.Composer().Items)
	assert.Empty(t, s.PendingAttachments())
}

func TestRemoveCancelsClosableRead(t *testing.T) {
	s := New()
	pr, pw := io.Pipe()
	defer pw.Close()
	rd := s.Attach(context.Background(), "pipe.bin", "application/octet-stream", pr)

	require.NoError(t, s.RemoveAttachment(0))
	wait(t, rd.Done())
	assert.False(t, rd.Applied())
	assert.ErrorIs(t, rd.Err(), io.ErrClosedPipe)
	assert.Empty(t, s.Composer().Items)

	assert.ErrorIs(t, s.RemoveAttachment(0), ErrNoSuchAttachment)
}

func TestSingleAttachmentReplaces(t *testing.T) {
	s := New(WithMaxAttachments(1))

	g := &gatedReader{gate: make(chan struct{}), r: strings.NewReader("first")}
	slow := s.Attach(context.Background(), "first.txt", "text/plain", g)
	attachText(t, s, "second.txt", "second")

	close(g.gate)
	wait(t, slow.Done())
	assert.False(t, slow.Applied())

	atts := s.PendingAttachments()
	require.Len(t, atts, 1)
	assert.Equal(t, "second.txt", atts[0].Name)

	attachText(t, s, "third.txt", "third")
	atts = s.PendingAttachments()
	require.Len(t, atts, 1)
	assert.Equal(t, "third.txt", atts[0].Name)
}

func TestSendInvalidatesLoadingReads(t *testing.T) {
	sd := &stubSender{reply: "ok"}
	s := New(WithSender(sd))
	g := &gatedReader{gate: make(chan struct{}), r: strings.NewReader("slow")}
	rd := s.Attach(context.Background(), "slow.txt", "text/plain", g)
	s.SetText("now")

	done, ok := s.Send(context.Background())
	require.True(t, ok)
	wait(t, done)
	assert.Empty(t, sd.got[0].Files)

	close(g.gate)
	wait(t, rd.Done())
	assert.False(t, rd.Applied())
	assert.Empty(t, s.Composer().Items)
}

func TestSwitchKeepsMessages(t *testing.T) {
	sd := &stubSender{reply: "r1"}
	s := New(WithSender(sd))
	first := s.Active().ID

	s.SetText("in first")
	done, _ := s.Send(context.Background())
	wait(t, done)
	snapFirst := s.Active()
	require.Len(t, snapFirst.Messages, 3)

	second := s.NewConversation()
	assert.Equal(t, "การสนทนาที่ 2", second.Title)
	assert.Equal(t, second.ID, s.Active().ID)

	attachText(t, s, "x.txt", "x")
	s.SetText("in second")
	done, _ = s.Send(context.Background())
	wait(t, done)

	s.SetText("draft")
	attachText(t, s, "y.txt", "y")
	require.NoError(t, s.Switch(first))
	assert.Equal(t, snapFirst, s.Active())
	assert.Equal(t, ComposerState{Items: []ComposerItem{}}, s.Composer())

	require.NoError(t, s.Switch(second.ID))
	sc := s.Active()
	require.Len(t, sc.Messages, 3)
	assert.Equal(t, "in second", sc.Messages[1].Text)

	assert.ErrorIs(t, s.Switch("nope"), ErrConversationNotFound)
	assert.Equal(t, second.ID, s.Active().ID)

	list := s.Conversations()
	require.Len(t, list, 2)
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)
	assert.Equal(t, "r1", list[0].Subtitle)
}

func TestReplyLandsInOriginConversation(t *testing.T) {
	sd := &stubSender{reply: "late reply", gate: make(chan struct{})}
	s := New(WithSender(sd))
	origin := s.Active().ID

	s.SetText("question")
	done, ok := s.Send(context.Background())
	require.True(t, ok)

	other := s.NewConversation()
	close(sd.gate)
	wait(t, done)

	c, err := s.Get(origin)
	require.NoError(t, err)
	assert.Equal(t, "late reply", lastMessage(c).Text)

	c, err = s.Get(other.ID)
	require.NoError(t, err)
	assert.Len(t, c.Messages, 1)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := New(WithSender(&stubSender{reply: "ok"}))
	attachText(t, s, "a.txt", "a")
	s.SetText("hi")
	done, _ := s.Send(context.Background())
	wait(t, done)

	c := s.Active()
	c.Messages[1].Attachments[0].Name = "changed"
	c.Messages[0].Text = "changed"

	again := s.Active()
	assert.Equal(t, "a.txt", again.Messages[1].Attachments[0].Name)
	assert.Equal(t, WelcomeText, again.Messages[0].Text)
}

func TestAttachFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	raw := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(raw, []byte("%PDF-1.4 fake"), 0o644))

	s := New()
	rd, err := s.AttachFile(context.Background(), txt)
	require.NoError(t, err)
	wait(t, rd.Done())
	rd, err = s.AttachFile(context.Background(), raw)
	require.NoError(t, err)
	wait(t, rd.Done())

	atts := s.PendingAttachments()
	require.Len(t, atts, 2)
	assert.Equal(t, "note.txt", atts[0].Name)
	assert.Equal(t, "text/plain", atts[0].MimeType)
	assert.Equal(t, "aGVsbG8=", atts[0].Data)
	assert.False(t, atts[0].IsImage)
	assert.Empty(t, atts[0].Preview)
	assert.Equal(t, "application/pdf", atts[1].MimeType)
	assert.Equal(t, "PDF", atts[1].Label())

	_, err = s.AttachFile(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)

	s.ClearAttachments()
	assert.Empty(t, s.PendingAttachments())
}

type failingReader struct {
	closed atomic.Bool
}

func (r *failingReader) Read([]byte) (int, error) { return 0, errors.New("disk error") }
func (r *failingReader) Close() error {
	r.closed.Store(true)
	return nil
}

func TestFailedReadReleasesSource(t *testing.T) {
	s := New()
	src := &failingReader{}
	rd := s.Attach(context.Background(), "bad.bin", "application/octet-stream", src)
	wait(t, rd.Done())

	assert.False(t, rd.Applied())
	assert.EqualError(t, rd.Err(), "disk error")
	assert.True(t, src.closed.Load())
	assert.Empty(t, s.Composer().Items)
}

func TestAttachFileSniffsOffice(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "word/document.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "report")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	s := New()
	rd, err := s.AttachFile(context.Background(), path)
	require.NoError(t, err)
	wait(t, rd.Done())
	atts := s.PendingAttachments()
	require.Len(t, atts, 1)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", atts[0].MimeType)
	assert.Equal(t, "DOC", atts[0].Label())
}

func TestHTTPSender(t *testing.T) {
	var got Payload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = jsonDecode(r, &got)
		switch got.Message {
		case "busy":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"reply":"try later"}`))
		case "html":
			_, _ = w.Write([]byte(`<html></html>`))
		case "none":
			_, _ = w.Write([]byte(`{}`))
		default:
			_, _ = w.Write([]byte(`{"reply":"hi there"}`))
		}
	}))
	defer ts.Close()

	hs := NewHTTPSender(ts.URL+"/api/chat", nil)
	ctx := context.Background()

	reply, err := hs.Chat(ctx, &Payload{ConversationID: "c1", Message: "hello", Files: []FilePayload{{MimeType: "image/png", Data: "AAAA"}}})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, "c1", got.ConversationID)
	require.Len(t, got.Files, 1)

	reply, err = hs.Chat(ctx, &Payload{Message: "busy"})
	require.NoError(t, err)
	assert.Equal(t, "try later", reply)

	reply, err = hs.Chat(ctx, &Payload{Message: "none"})
	require.NoError(t, err)
	assert.Equal(t, "", reply)

	_, err = hs.Chat(ctx, &Payload{Message: "html"})
	assert.Error(t, err)

	s := New(WithSender(hs))
	s.SetText("none")
	done, _ := s.Send(ctx)
	wait(t, done)
	assert.Equal(t, NoReplyText, lastMessage(s.Active()).Text)

	s.SetText("html")
	done, _ = s.Send(ctx)
	wait(t, done)
	assert.Equal(t, ConnectivityErrorText, lastMessage(s.Active()).Text)
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
