package handler

import (
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/reviews/service"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReviewHandler struct {
	service service.ReviewService
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewReviewHandler(service service.ReviewService, authenticator *auth.Authenticator, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *ReviewHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateReviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	review, err := h.service.Create(r.Context(), auth.PrincipalFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, review); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReviewHandler) ListForListing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListForListing", err)
		return
	}

	reviews, total, err := h.service.ListForListing(r.Context(), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListForListing", err)
		return
	}

	if err := httputil.WritePaginated(w, reviews, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListForListing", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReviewHandler) GetForBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	review, err := h.service.GetForBooking(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetForBooking", err)
		return
	}

	if err := httputil.WriteSuccess(w, review); err != nil {
		h.log.Error("failed to write success response", "handler", "GetForBooking", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reviews", h.auth.Authenticated(h.Create))
	router.GET("/api/v1/listings/id/:id/reviews", h.ListForListing)
	router.GET("/api/v1/bookings/id/:id/review", h.auth.Authenticated(h.GetForBooking))
}
