package handler

import (
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/messages/hub"
	"otithi/internal/messages/service"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// LivePath is served outside the middleware chain, which wraps the
// ResponseWriter and would break the connection hijack.
const LivePath = "/api/v1/messages/ws"

type MessageHandler struct {
	service service.MessageService
	hub     *hub.Hub
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewMessageHandler(service service.MessageService, live *hub.Hub, authenticator *auth.Authenticator, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		hub:     live,
		auth:    authenticator,
		log:     log,
	}
}

func (h *MessageHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MessageHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *MessageHandler) writePage(w http.ResponseWriter, handler string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Send", err)
		return
	}

	msg, err := h.service.Send(r.Context(), auth.PrincipalFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, "Send", err)
		return
	}

	if err := httputil.WriteCreated(w, msg); err != nil {
		h.log.Error("failed to write created response", "handler", "Send", "operation", "WriteCreated", "error", err)
	}
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Conversations", err)
		return
	}

	convs, total, err := h.service.Conversations(r.Context(), auth.PrincipalFrom(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "Conversations", err)
		return
	}
	h.writePage(w, "Conversations", convs, total, limit, offset)
}

func (h *MessageHandler) Messages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Messages", err)
		return
	}

	msgs, total, err := h.service.Messages(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "Messages", err)
		return
	}
	h.writePage(w, "Messages", msgs, total, limit, offset)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	msg, err := h.service.MarkRead(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}
	h.writeSuccess(w, "MarkRead", msg)
}

func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	marked, err := h.service.MarkConversationRead(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "MarkConversationRead", err)
		return
	}
	h.writeSuccess(w, "MarkConversationRead", map[string]int64{"marked": marked})
}

func (h *MessageHandler) MarkAllRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	marked, err := h.service.MarkAllRead(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.writeError(w, "MarkAllRead", err)
		return
	}
	h.writeSuccess(w, "MarkAllRead", map[string]int64{"marked": marked})
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	count, err := h.service.UnreadCount(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.writeError(w, "UnreadCount", err)
		return
	}
	h.writeSuccess(w, "UnreadCount", map[string]int64{"unread": count})
}

// Live upgrades to a websocket. Browsers cannot set headers on the upgrade
// request, so the session cookie is the usual credential here.
func (h *MessageHandler) Live(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p := auth.PrincipalFrom(r.Context())
	if err := h.hub.Serve(w, r, p.UserID); err != nil {
		h.log.Warn("Websocket upgrade failed", "user_id", p.UserID, "error", err)
	}
}

// LiveHandler is the websocket endpoint as a plain http.Handler.
func (h *MessageHandler) LiveHandler() http.Handler {
	live := h.auth.Authenticated(h.Live)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		live(w, r, nil)
	})
}

func (h *MessageHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/messages", h.auth.Authenticated(h.Send))
	router.POST("/api/v1/messages/read-all", h.auth.Authenticated(h.MarkAllRead))
	router.GET("/api/v1/messages/unread-count", h.auth.Authenticated(h.UnreadCount))
	router.POST("/api/v1/messages/id/:id/read", h.auth.Authenticated(h.MarkRead))

	router.GET("/api/v1/conversations", h.auth.Authenticated(h.Conversations))
	router.GET("/api/v1/conversations/:id/messages", h.auth.Authenticated(h.Messages))
	router.POST("/api/v1/conversations/:id/read", h.auth.Authenticated(h.MarkConversationRead))
}
