package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/cupogo/andvari/models/oid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jpillora/eventsource"
	"github.com/marcsv/go-binder/binder"

	"github.com/lionbot/lionbot/pkg/models/aigc"
	"github.com/lionbot/lionbot/pkg/services/gemini"
	"github.com/lionbot/lionbot/pkg/services/stores"
)

// replies shown to the end user
const (
	ReplyEmptyInput = "กรุณาส่งข้อความหรือไฟล์แนบ"
	ReplyBadRequest = "รูปแบบคำขอไม่ถูกต้อง"
	ReplyBusy       = "ตอนนี้ Gemini คนใช้เยอะ / ระบบแน่นอยู่ ลองเว้นสักพักแล้วส่งใหม่อีกทีนะเพื่อน"
	ReplyUpstream   = "มีปัญหาในการเรียก Gemini: "
	ReplyNoAnswer   = "ไม่พบคำตอบจาก Model กรุณาลองใหม่อีกครั้ง"
	ReplyCrash      = "ระบบหลังบ้านขัดข้อง กรุณาตรวจสอบ Terminal"

	esDone = "[DONE]"
)

var errEmptyInput = errors.New("empty message and attachments")

// FilePart is one inline attachment of a chat request
type FilePart struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Name     string `json:"name,omitempty"`
}

// ChatRequest accepts both single attachment (image or file) and multi-file bodies
type ChatRequest struct {
	Message        string     `json:"message"`
	Image          *FilePart  `json:"image,omitempty"`
	File           *FilePart  `json:"file,omitempty"`
	Files          []FilePart `json:"files,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
}

// Attachments returns all non-empty attachments in request order
func (z *ChatRequest) Attachments() (out []FilePart) {
	for _, f := range []*FilePart{z.Image, z.File} {
		if f != nil && len(f.Data) > 0 {
			out = append(out, *f)
		}
	}
	for _, f := range z.Files {
		if len(f.Data) > 0 {
			out = append(out, f)
		}
	}
	return
}

// ChatReply is the body of every chat response, errors included
type ChatReply struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId,omitempty"`
}

type chatRequest struct {
	cs    stores.Conversation
	turn  aigc.Content
	isSSE bool
}

func (s *server) prepareChatRequest(param *ChatRequest) (*chatRequest, error) {
	csid, err := stores.NormalizeID(param.ConversationID)
	if err != nil {
		return nil, err
	}

	var parts aigc.Parts
	if len(param.Message) > 0 {
		parts = append(parts, aigc.NewTextPart(param.Message))
	}
	for _, f := range param.Attachments() {
		if s.hints {
			if desc := aigc.DescribeMIME(f.MimeType); len(desc) > 0 {
				parts = append(parts, aigc.NewTextPart("\n[ระบบ: ผู้ใช้ได้แนบ '"+desc+"' มาด้วย]\n"))
			}
		}
		parts = append(parts, aigc.NewInlinePart(f.MimeType, f.Data))
	}
	if len(parts) == 0 {
		return nil, errEmptyInput
	}

	return &chatRequest{
		cs:   s.sto.Conversation(csid),
		turn: aigc.Content{Role: aigc.RoleUser, Parts: parts},
	}, nil
}

func (s *server) postChat(w http.ResponseWriter, r *http.Request) {
	isSSE := strings.HasSuffix(r.URL.Path, "-sse")
	var param ChatRequest
	if err := binder.BindBody(r, &param); err != nil {
		logger().Infow("bind chat fail", "err", err)
		writeReply(w, r, isSSE, http.StatusBadRequest, &ChatReply{Reply: ReplyBadRequest})
		return
	}
	ccr, err := s.prepareChatRequest(&param)
	if err != nil {
		reply := ReplyEmptyInput
		if errors.Is(err, stores.ErrInvalidID) {
			reply = ReplyBadRequest
		}
		writeReply(w, r, isSSE, http.StatusBadRequest, &ChatReply{Reply: reply})
		return
	}
	ccr.isSSE = isSSE

	logger().Infow("chat", "csid", ccr.cs.GetID(), "parts", len(ccr.turn.Parts),
		"files", len(param.Attachments()), "ip", r.RemoteAddr)

	status, reply := s.chat(r.Context(), ccr)
	w.Header().Set("Conversation-ID", ccr.cs.GetID())
	writeReply(w, r, ccr.isSSE, status, reply)
}

// chat runs one turn: history + user turn upstream, then append both turns on success
func (s *server) chat(ctx context.Context, ccr *chatRequest) (int, *ChatReply) {
	csid := ccr.cs.GetID()
	unlock := s.sto.Lock(csid)
	defer unlock()

	history, err := ccr.cs.ListHistory(ctx)
	if err != nil {
		logger().Errorw("list history fail", "csid", csid, "err", err)
		return http.StatusInternalServerError, &ChatReply{Reply: ReplyCrash}
	}

	req := &gemini.Request{
		Contents:          append(slices.Clone(history), ccr.turn),
		SystemInstruction: s.getPreset().SystemInstruction(),
	}
	res, err := s.gen.GenerateContent(ctx, req)
	if err != nil {
		var ae *gemini.APIError
		if errors.As(err, &ae) {
			if ae.Overloaded() {
				logger().Warnw("gemini overload/rate limit", "status", ae.StatusCode, "msg", ae.Message)
				return http.StatusServiceUnavailable, &ChatReply{Reply: ReplyBusy}
			}
			logger().Errorw("gemini api error", "status", ae.StatusCode, "msg", ae.Message)
			status := ae.StatusCode
			if status == 0 {
				status = http.StatusBadRequest
			}
			return status, &ChatReply{Reply: ReplyUpstream + ae.Message}
		}
		logger().Errorw("call gemini fail", "csid", csid, "err", err)
		return http.StatusInternalServerError, &ChatReply{Reply: ReplyCrash}
	}

	if !res.Usable() {
		// the user turn is not kept either
		logger().Infow("no candidate", "csid", csid)
		return http.StatusOK, &ChatReply{Reply: ReplyNoAnswer}
	}

	answer := res.Text()
	if err = ccr.cs.AddHistory(ctx, ccr.turn, res.Reply()); err != nil {
		logger().Warnw("save history fail", "csid", csid, "err", err)
	}
	logger().Infow("chat done", "csid", csid, "answer", len(answer))

	return http.StatusOK, &ChatReply{Reply: answer, ConversationID: csid}
}

func writeReply(w http.ResponseWriter, r *http.Request, isSSE bool, status int, reply *ChatReply) {
	if !isSSE {
		render.Status(r, status)
		render.JSON(w, r, reply)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(status)
	if writeEvent(w, strconv.Itoa(1), reply) {
		_ = writeEvent(w, strconv.Itoa(2), esDone)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeEvent write one server-sent event
func writeEvent(w io.Writer, id string, m any) bool {
	var b []byte
	var err error
	if s, ok := m.(string); ok {
		b = []byte(s)
	} else {
		b, err = json.Marshal(m)
		if err != nil {
			logger().Infow("json marshal fail", "m", m, "err", err)
			return false
		}
	}

	if err = eventsource.WriteEvent(w, eventsource.Event{
		ID:   id,
		Data: b,
	}); err != nil {
		logger().Infow("eventsource write fail", "err", err)
		return false
	}

	return true
}

func (s *server) getWelcome(w http.ResponseWriter, r *http.Request) {
	msg := &aigc.Message{
		Role:    aigc.RoleModel,
		Content: s.getPreset().GetWelcome(),
		ID:      oid.NewID(oid.OtEvent).String(),
	}
	apiOk(w, r, msg)
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	cid, err := stores.NormalizeID(chi.URLParam(r, "cid"))
	if err != nil {
		apiFail(w, r, 400, err)
		return
	}
	data, err := s.sto.Conversation(cid).ListHistory(r.Context())
	if err != nil {
		apiFail(w, r, 500, err)
		return
	}
	apiOk(w, r, data, len(data))
}

func (s *server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	cid, err := stores.NormalizeID(chi.URLParam(r, "cid"))
	if err != nil {
		apiFail(w, r, 400, err)
		return
	}
	if err = s.sto.Conversation(cid).ClearHistory(r.Context()); err != nil {
		apiFail(w, r, 500, err)
		return
	}
	apiOk(w, r, M{"id": cid})
}
