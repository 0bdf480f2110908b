package handler

import (
	"net/http"
	"otithi/internal/admin/service"
	"otithi/internal/auth"
	apperrors "otithi/pkg/errors"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AdminHandler struct {
	service service.AdminService
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewAdminHandler(service service.AdminService, authenticator *auth.Authenticator, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *AdminHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AdminHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AdminHandler) writePage(w http.ResponseWriter, handler string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}
	h.writeSuccess(w, "Stats", stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListUsers", err)
		return
	}

	users, total, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("role"), limit, offset)
	if err != nil {
		h.writeError(w, "ListUsers", err)
		return
	}
	h.writePage(w, "ListUsers", users, total, limit, offset)
}

func (h *AdminHandler) SetVerified(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.SetVerifiedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetVerified", err)
		return
	}
	if req.Verified == nil {
		h.writeError(w, "SetVerified", apperrors.Validation("User validation failed", map[string]any{"error": "verified: is required"}))
		return
	}

	user, err := h.service.SetVerified(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), *req.Verified)
	if err != nil {
		h.writeError(w, "SetVerified", err)
		return
	}
	h.writeSuccess(w, "SetVerified", user)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.SetRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetRole", err)
		return
	}

	user, err := h.service.SetRole(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), req.Role)
	if err != nil {
		h.writeError(w, "SetRole", err)
		return
	}
	h.writeSuccess(w, "SetRole", user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteUser(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "DeleteUser", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandler) ListListings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListListings", err)
		return
	}

	listings, total, err := h.service.ListListings(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, "ListListings", err)
		return
	}
	h.writePage(w, "ListListings", listings, total, limit, offset)
}

func (h *AdminHandler) ApproveListing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	listing, err := h.service.ApproveListing(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ApproveListing", err)
		return
	}
	h.writeSuccess(w, "ApproveListing", listing)
}

// RejectListing accepts an empty body; the reason is optional.
func (h *AdminHandler) RejectListing(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RejectListingRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "RejectListing", err)
			return
		}
	}

	listing, err := h.service.RejectListing(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, "RejectListing", err)
		return
	}
	h.writeSuccess(w, "RejectListing", listing)
}

func (h *AdminHandler) ListPendingNID(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListPendingNID", err)
		return
	}

	users, total, err := h.service.ListPendingNID(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "ListPendingNID", err)
		return
	}
	h.writePage(w, "ListPendingNID", users, total, limit, offset)
}

func (h *AdminHandler) ApproveNID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, err := h.service.ApproveNID(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ApproveNID", err)
		return
	}
	h.writeSuccess(w, "ApproveNID", user)
}

func (h *AdminHandler) RejectNID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RejectNIDRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, "RejectNID", err)
			return
		}
	}

	user, err := h.service.RejectNID(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, "RejectNID", err)
		return
	}
	h.writeSuccess(w, "RejectNID", user)
}

func (h *AdminHandler) admin(next httprouter.Handle) httprouter.Handle {
	return h.auth.RequireRole(next, model.RoleAdmin)
}

func (h *AdminHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/admin/stats", h.admin(h.Stats))

	router.GET("/api/v1/admin/users", h.admin(h.ListUsers))
	router.PATCH("/api/v1/admin/users/id/:id/verified", h.admin(h.SetVerified))
	router.PATCH("/api/v1/admin/users/id/:id/role", h.admin(h.SetRole))
	router.DELETE("/api/v1/admin/users/id/:id", h.admin(h.DeleteUser))

	router.GET("/api/v1/admin/nid-verifications", h.admin(h.ListPendingNID))
	router.POST("/api/v1/admin/users/id/:id/nid/approve", h.admin(h.ApproveNID))
	router.POST("/api/v1/admin/users/id/:id/nid/reject", h.admin(h.RejectNID))

	router.GET("/api/v1/admin/listings", h.admin(h.ListListings))
	router.POST("/api/v1/admin/listings/id/:id/approve", h.admin(h.ApproveListing))
	router.POST("/api/v1/admin/listings/id/:id/reject", h.admin(h.RejectListing))
}
