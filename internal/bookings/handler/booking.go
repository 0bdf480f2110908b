package handler

import (
	"context"
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/bookings/service"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, authenticator *auth.Authenticator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writePage(w http.ResponseWriter, handler string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(r.Context(), auth.PrincipalFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", booking)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	status := r.URL.Query().Get("status")
	bookings, total, err := h.service.ListMine(r.Context(), auth.PrincipalFrom(r.Context()), status, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}
	h.writePage(w, "ListMine", bookings, total, limit, offset)
}

func filterFrom(r *http.Request) *model.BookingFilter {
	q := r.URL.Query()
	return &model.BookingFilter{
		ListingID: q.Get("listing_id"),
		Status:    q.Get("status"),
	}
}

func (h *BookingHandler) ListForHost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForHost", err)
		return
	}

	bookings, total, err := h.service.ListForHost(r.Context(), auth.PrincipalFrom(r.Context()), filterFrom(r), limit, offset)
	if err != nil {
		h.writeError(w, "ListForHost", err)
		return
	}
	h.writePage(w, "ListForHost", bookings, total, limit, offset)
}

func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}

	filter := filterFrom(r)
	filter.GuestID = r.URL.Query().Get("guest_id")
	filter.HostID = r.URL.Query().Get("host_id")

	bookings, total, err := h.service.ListAll(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}
	h.writePage(w, "ListAll", bookings, total, limit, offset)
}

type transitionFunc func(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)

// transition adapts one of the lifecycle operations to a route.
func (h *BookingHandler) transition(name string, fn transitionFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		booking, err := fn(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
		if err != nil {
			h.writeError(w, name, err)
			return
		}
		h.writeSuccess(w, name, booking)
	}
}

func (h *BookingHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BookingStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "AdminSetStatus", err)
		return
	}

	booking, err := h.service.AdminSetStatus(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "AdminSetStatus", err)
		return
	}
	h.writeSuccess(w, "AdminSetStatus", booking)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.auth.Authenticated(h.Create))
	router.GET("/api/v1/bookings/mine", h.auth.Authenticated(h.ListMine))
	router.GET("/api/v1/bookings/host", h.auth.RequireRole(h.ListForHost, model.RoleHost, model.RoleAdmin))
	router.GET("/api/v1/bookings/id/:id", h.auth.Authenticated(h.GetByID))

	router.POST("/api/v1/bookings/id/:id/confirm", h.auth.Authenticated(h.transition("Confirm", h.service.Confirm)))
	router.POST("/api/v1/bookings/id/:id/reject", h.auth.Authenticated(h.transition("Reject", h.service.Reject)))
	router.POST("/api/v1/bookings/id/:id/cancel", h.auth.Authenticated(h.transition("Cancel", h.service.Cancel)))
	router.POST("/api/v1/bookings/id/:id/check-in", h.auth.Authenticated(h.transition("CheckIn", h.service.CheckIn)))
	router.POST("/api/v1/bookings/id/:id/check-out", h.auth.Authenticated(h.transition("CheckOut", h.service.CheckOut)))

	router.GET("/api/v1/admin/bookings", h.auth.RequireRole(h.ListAll, model.RoleAdmin))
	router.PATCH("/api/v1/admin/bookings/id/:id/status", h.auth.RequireRole(h.AdminSetStatus, model.RoleAdmin))
}
