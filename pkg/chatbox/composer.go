package chatbox

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/cupogo/andvari/utils/zlog"
	"github.com/gabriel-vasile/mimetype"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

// slot is one composer attachment; att stays nil while its read is in flight
type slot struct {
	token  uint64
	name   string
	att    *Attachment
	cancel func()
}

// Read tracks one asynchronous attachment read.
type Read struct {
	token   uint64
	done    chan struct{}
	applied bool
	err     error
}

// Done is closed when the read has finished, applied or not.
func (r *Read) Done() <-chan struct{} { return r.done }

// Applied reports whether the result reached the composer, valid after Done.
func (r *Read) Applied() bool { return r.applied }

// Err returns the read failure, valid after Done.
func (r *Read) Err() error { return r.err }

// Attach starts reading src into a pending attachment.
// The result is dropped if its slot was removed, evicted or cleared meanwhile.
func (s *Store) Attach(ctx context.Context, name, mimeType string, src io.Reader) *Read {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.gen++
	rd := &Read{token: s.gen, done: make(chan struct{})}
	if s.maxFiles > 0 {
		for len(s.slots) >= s.maxFiles {
			s.dropSlotLocked(0)
		}
	}
	s.slots = append(s.slots, &slot{token: rd.token, name: name, cancel: func() {
		cancel()
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
	}})
	s.mu.Unlock()
	s.notify()

	go func() {
		defer close(rd.done)
		defer cancel()
		data, err := io.ReadAll(src)
		if err == nil {
			err = ctx.Err()
		}
		rd.err = err
		s.finishRead(rd, name, mimeType, data)
	}()
	return rd
}

const sniffLen = 3072

// AttachFile opens path and attaches it, the media type comes from the
// extension or the leading bytes.
func (s *Store) AttachFile(ctx context.Context, path string) (*Read, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, sniffLen)
	mt := mime.TypeByExtension(filepath.Ext(path))
	if len(mt) == 0 {
		head, _ := br.Peek(sniffLen)
		mt = mimetype.Detect(head).String()
	}
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		mt = base
	}
	return s.Attach(ctx, filepath.Base(path), mt, &fileReader{Reader: br, f: f}), nil
}

type fileReader struct {
	*bufio.Reader
	f *os.File
}

func (r *fileReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		_ = r.f.Close()
	}
	return n, err
}

func (r *fileReader) Close() error { return r.f.Close() }

func (s *Store) finishRead(rd *Read, name, mimeType string, data []byte) {
	s.mu.Lock()
	idx := s.slotIndexLocked(rd.token)
	if idx < 0 {
		s.mu.Unlock()
		logger().Debugw("drop stale read", "name", name, "token", rd.token)
		return
	}
	if rd.err != nil {
		s.dropSlotLocked(idx)
		s.mu.Unlock()
		logger().Infow("read attachment fail", "name", name, "err", rd.err)
		s.notify()
		return
	}
	att := newAttachment(name, mimeType, data)
	s.slots[idx].att = &att
	rd.applied = true
	s.mu.Unlock()

	s.notify()
}

func newAttachment(name, mimeType string, raw []byte) Attachment {
	data := base64.StdEncoding.EncodeToString(raw)
	att := Attachment{Name: name, MimeType: mimeType, Data: data, IsImage: aigc.IsImage(mimeType)}
	if att.IsImage {
		att.Preview = "data:" + mimeType + ";base64," + data
	}
	return att
}

func (s *Store) slotIndexLocked(token uint64) int {
	for i, sl := range s.slots {
		if sl.token == token {
			return i
		}
	}
	return -1
}

func (s *Store) dropSlotLocked(i int) {
	s.slots[i].cancel()
	s.slots = append(s.slots[:i], s.slots[i+1:]...)
}

// RemoveAttachment drops the i-th composer item, cancelling its read if in flight.
func (s *Store) RemoveAttachment(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.slots) {
		s.mu.Unlock()
		return ErrNoSuchAttachment
	}
	s.dropSlotLocked(i)
	s.inputResets++
	s.mu.Unlock()

	s.notify()
	return nil
}

// ClearAttachments drops every composer item.
func (s *Store) ClearAttachments() {
	s.mu.Lock()
	s.clearAttachmentsLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) clearAttachmentsLocked() {
	for _, sl := range s.slots {
		sl.cancel()
	}
	s.slots = nil
	s.gen++
	s.inputResets++
}

// InputResets counts how many times the file picker was reset,
// so the same file can be picked again.
func (s *Store) InputResets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputResets
}

// Composer returns the unsent text and attachment slots
func (s *Store) Composer() ComposerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := ComposerState{Text: s.text, Items: make([]ComposerItem, len(s.slots))}
	for i, sl := range s.slots {
		item := ComposerItem{Name: sl.name, Loading: sl.att == nil}
		if sl.att != nil {
			item.Attachment = *sl.att
		}
		cs.Items[i] = item
	}
	return cs
}

// PendingAttachments returns the attachments whose reads have completed
func (s *Store) PendingAttachments() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedLocked()
}

func (s *Store) loadedLocked() []Attachment {
	var out []Attachment
	for _, sl := range s.slots {
		if sl.att != nil {
			out = append(out, *sl.att)
		}
	}
	return out
}

func logger() zlog.Logger {
	return zlog.Get()
}
