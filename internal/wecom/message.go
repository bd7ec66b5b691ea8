package wecom

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// MsgTypeText is the only message type the relay sends.
const MsgTypeText = "text"

// Message is the group robot request body.
type Message struct {
	MsgType string `json:"msgtype"`
	Text    *Text  `json:"text,omitempty"`
}

// Text carries the body of a text message.
type Text struct {
	Content string `json:"content"`
}

// NewText wraps content in a text message envelope.
func NewText(content string) Message {
	return Message{MsgType: MsgTypeText, Text: &Text{Content: content}}
}

// Response is the webhook reply. Raw keeps the body exactly as received so it
// can be passed through to callers.
type Response struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`

	Raw json.RawMessage `json:"-"`
}

// OK reports whether the webhook accepted the message.
func (r *Response) OK() bool {
	return r != nil && r.ErrCode == 0
}

// MarshalJSON emits the upstream body verbatim.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// ResponseParseError is returned when the webhook answered with something that is not JSON.
type ResponseParseError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ResponseParseError) Error() string {
	if e == nil {
		return "wecom response parse error"
	}
	return fmt.Sprintf("企业微信响应解析失败: %s", e.Body)
}

func (e *ResponseParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError is returned when the request could not be completed at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "wecom transport error"
	}
	// The webhook key travels in the query string; keep it out of error text.
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		return fmt.Sprintf("%s %q: %v", urlErr.Op, RedactURL(urlErr.URL), urlErr.Err)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RedactURL drops the query string and user info from a webhook URL.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	parsed.User = nil
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
