package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cupogo/andvari/utils/zlog"
	"google.golang.org/genai"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

// Request is one generateContent call.
type Request struct {
	Contents          aigc.Contents `json:"contents"`
	SystemInstruction *aigc.Content `json:"systemInstruction,omitempty"`
}

type Candidate struct {
	Content      *aigc.Content `json:"content,omitempty"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// Response keeps the candidates of a generateContent reply.
type Response struct {
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Usable reports whether the first candidate carries at least one part.
func (r *Response) Usable() bool {
	return r != nil && len(r.Candidates) > 0 && r.Candidates[0].Content != nil &&
		len(r.Candidates[0].Content.Parts) > 0
}

// Text joins the text parts of the first candidate.
func (r *Response) Text() string {
	if !r.Usable() {
		return ""
	}
	return r.Candidates[0].Content.Parts.Text()
}

// Reply returns the first candidate as a model turn, parts unchanged.
func (r *Response) Reply() aigc.Content {
	if !r.Usable() {
		return aigc.Content{Role: aigc.RoleModel}
	}
	c := *r.Candidates[0].Content
	c.Role = aigc.RoleModel
	return c
}

// Generator produces one reply for a full context.
type Generator interface {
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
}

type Option func(*Client)

func WithBaseURL(s string) Option {
	return func(c *Client) {
		if len(s) > 0 {
			c.baseURL = s
		}
	}
}

// WithHTTPClient replace the default client, which honors proxy settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout bounds every call, the given http client is copied, not changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client calls generateContent of the Gemini API through genai
type Client struct {
	model   string
	baseURL string
	timeout time.Duration
	hc      *http.Client

	gc *genai.Client
}

var _ Generator = (*Client)(nil)

// New builds a client, an empty api key is an error.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	c := &Client{
		model:   model,
		baseURL: DefaultBaseURL,
		hc: &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.hc
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.hc = &hc

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.hc,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    c.baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new genai client: %w", err)
	}
	c.gc = gc
	return c, nil
}

func (c *Client) Model() string { return c.model }

// GenerateContent sends the turns and the system instruction.
// Upstream rejections come back as *APIError.
func (c *Client) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	contents, err := toGenai(req.Contents)
	if err != nil {
		return nil, invalidArgument(err)
	}
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != nil {
		var si []*genai.Content
		if si, err = toGenai(aigc.Contents{*req.SystemInstruction}); err != nil {
			return nil, invalidArgument(err)
		}
		cfg.SystemInstruction = si[0]
	}

	res, err := c.gc.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if ae := asAPIError(err); ae != nil {
			return nil, ae
		}
		return nil, fmt.Errorf("call generateContent: %w", err)
	}
	return fromGenai(res)
}

// toGenai converts through the shared wire format, inline data becomes bytes.
func toGenai(cs aigc.Contents) ([]*genai.Content, error) {
	b, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	var out []*genai.Content
	if err = json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromGenai(res *genai.GenerateContentResponse) (*Response, error) {
	out := &Response{}
	if res == nil {
		return out, nil
	}
	for _, cand := range res.Candidates {
		if cand == nil {
			continue
		}
		oc := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			b, err := json.Marshal(cand.Content)
			if err != nil {
				return nil, fmt.Errorf("encode candidate: %w", err)
			}
			oc.Content = new(aigc.Content)
			if err = json.Unmarshal(b, oc.Content); err != nil {
				return nil, fmt.Errorf("decode candidate: %w", err)
			}
		}
		out.Candidates = append(out.Candidates, oc)
	}
	return out, nil
}

func logger() zlog.Logger {
	return zlog.Get()
}
