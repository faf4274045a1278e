package chatbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cast"
)

// HTTPSender posts payloads to a LIONBOT /api/chat endpoint
type HTTPSender struct {
	endpoint string
	hc       *http.Client
}

var _ Sender = (*HTTPSender)(nil)

func NewHTTPSender(endpoint string, hc *http.Client) *HTTPSender {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPSender{endpoint: endpoint, hc: hc}
}

// Chat returns the reply field of any JSON body, whatever the status,
// since error statuses still carry a readable reply.
func (h *HTTPSender) Chat(ctx context.Context, p *Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var res map[string]any
	if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode reply, status %d: %w", resp.StatusCode, err)
	}
	return cast.ToString(res["reply"]), nil
}
