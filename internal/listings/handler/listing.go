package handler

import (
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/listings/service"
	apperrors "otithi/pkg/errors"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"otithi/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

type ListingHandler struct {
	service service.ListingService
	auth    *auth.Authenticator
	log     *logger.Logger
}

func NewListingHandler(service service.ListingService, authenticator *auth.Authenticator, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		auth:    authenticator,
		log:     log,
	}
}

func (h *ListingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ListingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ListingHandler) writePage(w http.ResponseWriter, handler string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var listing model.Listing
	if err := httputil.DecodeJSON(r, &listing); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	created, err := h.service.Create(r.Context(), auth.PrincipalFrom(r.Context()), &listing)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ListingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	listing, err := h.service.GetByID(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeSuccess(w, "GetByID", listing)
}

func parseSearch(r *http.Request) (*model.ListingSearch, error) {
	q := r.URL.Query()
	search := &model.ListingSearch{
		Location:     q.Get("location"),
		PropertyType: q.Get("property_type"),
	}

	var err error
	if search.Guests, err = httputil.ParseOptionalInt(r, "guests"); err != nil {
		return nil, err
	}
	if search.MinPrice, err = httputil.ParseOptionalInt64(r, "min_price"); err != nil {
		return nil, err
	}
	if search.MaxPrice, err = httputil.ParseOptionalInt64(r, "max_price"); err != nil {
		return nil, err
	}
	if search.CheckIn, err = httputil.ParseOptionalDate(q.Get("check_in")); err != nil {
		return nil, err
	}
	if search.CheckOut, err = httputil.ParseOptionalDate(q.Get("check_out")); err != nil {
		return nil, err
	}
	return search, nil
}

func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	search, err := parseSearch(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	listings, total, err := h.service.Search(r.Context(), search, limit, offset)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	h.writePage(w, "Search", listings, total, limit, offset)
}

func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	listings, total, err := h.service.Mine(r.Context(), auth.PrincipalFrom(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}
	h.writePage(w, "Mine", listings, total, limit, offset)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.ListingUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	listing, err := h.service.Update(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}
	h.writeSuccess(w, "Update", listing)
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (h *ListingHandler) SetAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req availabilityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SetAvailability", err)
		return
	}
	if req.Available == nil {
		h.writeError(w, "SetAvailability", apperrors.InvalidInput("available is required"))
		return
	}

	listing, err := h.service.SetAvailability(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), *req.Available)
	if err != nil {
		h.writeError(w, "SetAvailability", err)
		return
	}
	h.writeSuccess(w, "SetAvailability", listing)
}

func (h *ListingHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	checkIn, err := httputil.ParseDate(q.Get("check_in"))
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	checkOut, err := httputil.ParseDate(q.Get("check_out"))
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	result, err := h.service.Availability(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), checkIn, checkOut)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	h.writeSuccess(w, "Availability", result)
}

func (h *ListingHandler) UnavailableDates(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	from, err := httputil.ParseOptionalDate(q.Get("from"))
	if err != nil {
		h.writeError(w, "UnavailableDates", err)
		return
	}
	to, err := httputil.ParseOptionalDate(q.Get("to"))
	if err != nil {
		h.writeError(w, "UnavailableDates", err)
		return
	}

	result, err := h.service.UnavailableDates(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), from, to)
	if err != nil {
		h.writeError(w, "UnavailableDates", err)
		return
	}
	h.writeSuccess(w, "UnavailableDates", result)
}

func (h *ListingHandler) Quote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	checkIn, err := httputil.ParseDate(q.Get("check_in"))
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	checkOut, err := httputil.ParseDate(q.Get("check_out"))
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	guests, err := httputil.ParseOptionalInt(r, "guests")
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	if guests == 0 {
		guests = 1
	}

	quote, err := h.service.Quote(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), checkIn, checkOut, guests)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	h.writeSuccess(w, "Quote", quote)
}

func (h *ListingHandler) Save(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Save(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Save", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ListingHandler) Unsave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Unsave(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Unsave", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ListingHandler) ListSaved(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListSaved", err)
		return
	}

	listings, total, err := h.service.ListSaved(r.Context(), auth.PrincipalFrom(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListSaved", err)
		return
	}
	h.writePage(w, "ListSaved", listings, total, limit, offset)
}

// AddImage expects a multipart form with the file under "image".
func (h *ListingHandler) AddImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeError(w, "AddImage", apperrors.InvalidInput("Expected a multipart form with an image file"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, "AddImage", apperrors.InvalidInput("image file is required"))
		return
	}
	defer file.Close()

	listing, err := h.service.AddImage(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), header.Size, file)
	if err != nil {
		h.writeError(w, "AddImage", err)
		return
	}

	if err := httputil.WriteCreated(w, listing); err != nil {
		h.log.Error("failed to write created response", "handler", "AddImage", "operation", "WriteCreated", "error", err)
	}
}

func (h *ListingHandler) RemoveImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	listing, err := h.service.RemoveImage(r.Context(), auth.PrincipalFrom(r.Context()), ps.ByName("id"), r.URL.Query().Get("url"))
	if err != nil {
		h.writeError(w, "RemoveImage", err)
		return
	}
	h.writeSuccess(w, "RemoveImage", listing)
}

func (h *ListingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/listings", h.Search)
	router.POST("/api/v1/listings", h.auth.RequireVerifiedHost(h.Create))
	router.GET("/api/v1/listings/mine", h.auth.RequireRole(h.Mine, model.RoleHost, model.RoleAdmin))
	router.GET("/api/v1/listings/saved", h.auth.Authenticated(h.ListSaved))

	router.GET("/api/v1/listings/id/:id", h.auth.Optional(h.GetByID))
	router.PATCH("/api/v1/listings/id/:id", h.auth.RequireVerifiedHost(h.Update))
	router.DELETE("/api/v1/listings/id/:id", h.auth.RequireVerifiedHost(h.Delete))

	router.GET("/api/v1/listings/id/:id/availability", h.auth.Optional(h.Availability))
	router.PATCH("/api/v1/listings/id/:id/availability", h.auth.RequireVerifiedHost(h.SetAvailability))
	router.GET("/api/v1/listings/id/:id/unavailable-dates", h.auth.Optional(h.UnavailableDates))
	router.GET("/api/v1/listings/id/:id/quote", h.auth.Optional(h.Quote))

	router.POST("/api/v1/listings/id/:id/save", h.auth.Authenticated(h.Save))
	router.DELETE("/api/v1/listings/id/:id/save", h.auth.Authenticated(h.Unsave))

	router.POST("/api/v1/listings/id/:id/images", h.auth.RequireVerifiedHost(h.AddImage))
	router.DELETE("/api/v1/listings/id/:id/images", h.auth.RequireVerifiedHost(h.RemoveImage))
}
