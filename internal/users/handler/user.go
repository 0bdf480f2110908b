package handler

import (
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/users/service"
	apperrors "otithi/pkg/errors"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const multipartMemory = 8 << 20

type UserHandler struct {
	service service.UserService
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, authenticator *auth.Authenticator, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	result, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	h.auth.SetSessionCookie(w, result.Token, result.ExpiresAt)
	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	h.auth.SetSessionCookie(w, result.Token, result.ExpiresAt)
	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.service.Logout(r.Context(), auth.PrincipalFrom(r.Context())); err != nil {
		h.writeError(w, "Logout", err)
		return
	}

	h.auth.ClearSessionCookie(w)
	httputil.WriteNoContent(w)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := h.service.Me(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.writeError(w, "Me", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	profile, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, profile); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update model.ProfileUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "UpdateProfile", err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), auth.PrincipalFrom(r.Context()), &update)
	if err != nil {
		h.writeError(w, "UpdateProfile", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateProfile", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.PasswordChange
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ChangePassword", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), auth.PrincipalFrom(r.Context()), &req); err != nil {
		h.writeError(w, "ChangePassword", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.VerifyEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "VerifyEmail", err)
		return
	}

	result, err := h.service.VerifyEmail(r.Context(), auth.PrincipalFrom(r.Context()), &req)
	if err != nil {
		h.writeError(w, "VerifyEmail", err)
		return
	}

	h.auth.SetSessionCookie(w, result.Token, result.ExpiresAt)
	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "VerifyEmail", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) ResendVerification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.service.ResendVerification(r.Context(), auth.PrincipalFrom(r.Context())); err != nil {
		h.writeError(w, "ResendVerification", err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SubmitNID takes a multipart form with a "document" file.
func (h *UserHandler) SubmitNID(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, "SubmitNID", apperrors.InvalidInput("Expected a multipart form with a document file"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("document")
	if err != nil {
		h.writeError(w, "SubmitNID", apperrors.InvalidInput("document file is required"))
		return
	}
	defer file.Close()

	user, err := h.service.SubmitNID(r.Context(), auth.PrincipalFrom(r.Context()), header.Size, file)
	if err != nil {
		h.writeError(w, "SubmitNID", err)
		return
	}

	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "SubmitNID", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/register", h.Register)
	router.POST("/api/v1/auth/login", h.Login)
	router.POST("/api/v1/auth/logout", h.auth.Authenticated(h.Logout))
	router.GET("/api/v1/auth/me", h.auth.Authenticated(h.Me))
	router.POST("/api/v1/auth/verify", h.auth.Authenticated(h.VerifyEmail))
	router.POST("/api/v1/auth/verify/resend", h.auth.Authenticated(h.ResendVerification))

	router.PATCH("/api/v1/users/me", h.auth.Authenticated(h.UpdateProfile))
	router.POST("/api/v1/users/me/password", h.auth.Authenticated(h.ChangePassword))
	router.POST("/api/v1/users/me/nid", h.auth.RequireRole(h.SubmitNID, model.RoleHost))
	router.GET("/api/v1/users/:id", h.GetByID)
}
