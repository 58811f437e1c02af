package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/pkg/httpcontext"
	"github.com/taskflow/backend/usecase/notify"
)

const (
	EventHeader     = "X-TaskFlow-Event"
	SignatureHeader = "X-TaskFlow-Signature"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, eventNames []string, body []byte) notify.Result
}

// FunctionHandler exposes the notify-events webhook.
type FunctionHandler struct {
	baseHandler
	dispatcher EventDispatcher
	secret     []byte
}

func NewFunctionHandler(dispatcher EventDispatcher, secret string, adapter *httpcontext.Adapter, logger *zap.Logger) *FunctionHandler {
	return &FunctionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		dispatcher:  dispatcher,
		secret:      []byte(secret),
	}
}

// @Summary Dispatch notifications for a platform event
// @Tags functions
// @Router /api/v1/functions/notify-events [post]
func (h *FunctionHandler) NotifyEvents(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()
	if !h.verify(ctx.Request.Header.Peek(SignatureHeader), body) {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "invalid signature", nil))
		return
	}

	events := notify.ParseEventHeader(string(ctx.Request.Header.Peek(EventHeader)))
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result := h.dispatcher.Dispatch(stdCtx, events, body)
	h.requestLogger(stdCtx).Debug("notify events handled",
		zap.Strings("events", events),
		zap.Int("notified", result.Notified))

	out, _ := json.Marshal(result)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(out)
}

// verify accepts any request when no secret is configured, otherwise the
// header must carry the hex HMAC-SHA256 of the body.
func (h *FunctionHandler) verify(signature, body []byte) bool {
	if len(h.secret) == 0 {
		return true
	}
	want := Sign(h.secret, body)
	return hmac.Equal(signature, []byte(want))
}

// Sign computes the webhook signature for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
