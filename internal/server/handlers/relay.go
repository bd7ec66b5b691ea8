package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/trendrelay/trendrelay/internal/metrics"
	"github.com/trendrelay/trendrelay/internal/observability"
	"github.com/trendrelay/trendrelay/internal/relay"
	"github.com/trendrelay/trendrelay/internal/server/middleware"
	"github.com/trendrelay/trendrelay/internal/wecom"
)

// Relay response statuses and messages. Every outcome is reported with HTTP 200.
const (
	StatusOK        = "ok"
	StatusProcessed = "processed"

	MessageThrottled = "频率限制，稍后重试"
	MessageDelivered = "消息已发送到企业微信"
	MessageRecorded  = "处理中，已记录错误"

	// MaxRelayBodyBytes caps the inbound request body.
	MaxRelayBodyBytes = 1 << 20
)

// Relayer runs the relay pipeline for one payload.
type Relayer interface {
	Relay(ctx context.Context, channel string, tmData json.RawMessage) (*relay.Result, error)
}

// RelayRequest is the inbound body; tm_data is a JSON-encoded string or an object.
type RelayRequest struct {
	TmData json.RawMessage `json:"tm_data"`
}

// RelayResponse is written for every relay request.
type RelayResponse struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	WechatResult *wecom.Response `json:"wechatResult,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// RelayHandler serves POST / and forwards payloads to the configured channel.
type RelayHandler struct {
	relayer Relayer
	channel string
}

// NewRelayHandler returns a handler relaying to the default channel.
func NewRelayHandler(relayer Relayer) *RelayHandler {
	return &RelayHandler{relayer: relayer, channel: relay.DefaultChannel}
}

// ServeHTTP never answers with anything but 200: failures are logged and
// reported in the body.
func (h *RelayHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w := &headerTracker{ResponseWriter: rw}
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			metrics.RecordPanic(metrics.RouteLabel(r))
			if w.wroteHeader {
				// The reply is already on the wire; a second body would corrupt it.
				h.logFailure(r, err)
				return
			}
			h.fail(w, r, err)
		}
	}()

	req, err := decodeRelayRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.relayer == nil {
		h.fail(w, r, fmt.Errorf("relay service not configured"))
		return
	}

	result, err := h.relayer.Relay(r.Context(), h.channel, req.TmData)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if result.Throttled {
		if logger := observability.Logger(); logger != nil {
			logger.Warn("Relay throttled",
				zap.String("channel", result.Channel),
				zap.String("request_id", middleware.GetRequestID(r.Context())))
		}
		writeJSON(w, RelayResponse{Status: StatusOK, Message: MessageThrottled})
		return
	}

	if logger := observability.Logger(); logger != nil {
		fields := []zap.Field{
			zap.String("channel", result.Channel),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		}
		if result.Response != nil {
			fields = append(fields,
				zap.Int("errcode", result.Response.ErrCode),
				zap.String("errmsg", result.Response.ErrMsg))
		}
		logger.Info("Relay delivered", fields...)
	}

	writeJSON(w, RelayResponse{
		Status:       StatusOK,
		Message:      MessageDelivered,
		WechatResult: result.Response,
	})
}

func (h *RelayHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logFailure(r, err)
	writeJSON(w, RelayResponse{
		Status:  StatusProcessed,
		Message: MessageRecorded,
		Error:   err.Error(),
	})
}

func (h *RelayHandler) logFailure(r *http.Request, err error) {
	if logger := observability.Logger(); logger != nil {
		logger.Error("Relay failed",
			zap.String("channel", h.channel),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
}

// headerTracker records whether the response status has been sent.
type headerTracker struct {
	http.ResponseWriter
	wroteHeader bool
}

func (t *headerTracker) WriteHeader(code int) {
	t.wroteHeader = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *headerTracker) Write(b []byte) (int, error) {
	t.wroteHeader = true
	return t.ResponseWriter.Write(b)
}

// decodeRelayRequest reads the body; an empty body counts as an empty request.
func decodeRelayRequest(r *http.Request) (RelayRequest, error) {
	var req RelayRequest
	if r.Body == nil {
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRelayBodyBytes+1))
	if err != nil {
		return req, fmt.Errorf("read request body: %w", err)
	}
	if len(body) > MaxRelayBodyBytes {
		return req, fmt.Errorf("request body exceeds %d bytes", MaxRelayBodyBytes)
	}
	if strings.TrimSpace(string(body)) == "" {
		return req, nil
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("decode request body: %w", err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
