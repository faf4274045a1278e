package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// UnknownCause fills APIError.Message when upstream gave none
const UnknownCause = "ไม่ทราบสาเหตุ"

var overloadHints = []string{
	"overloaded",
	"resource has been exhausted",
	"rate",
	"quota",
}

// APIError is an HTTP level or API level failure reported by upstream.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func asAPIError(err error) *APIError {
	var ge genai.APIError
	if !errors.As(err, &ge) {
		var gp *genai.APIError
		if !errors.As(err, &gp) || gp == nil {
			return nil
		}
		ge = *gp
	}
	e := &APIError{StatusCode: ge.Code, Status: ge.Status, Message: ge.Message}
	if len(strings.TrimSpace(e.Message)) == 0 {
		e.Message = UnknownCause
	}
	logger().Debugw("upstream rejected", "code", ge.Code, "status", ge.Status)
	return e
}

func invalidArgument(err error) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: err.Error()}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

// Overloaded reports a rate limit or capacity rejection.
func (e *APIError) Overloaded() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable {
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, hint := range overloadHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
