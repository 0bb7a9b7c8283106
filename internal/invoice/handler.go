package invoice

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// Handler exposes invoice endpoints beneath /jobs/{id}/invoice.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes. The job id is read from the parent {id} param.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.items)
	r.Put("/", h.save)
	r.Get("/document", h.document)
}

// SaveRequest is the body of an invoice save.
type SaveRequest struct {
	Items []LineItem `json:"items"`
}

func (h *Handler) items(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "invoice items", err)
		return
	}
	httpx.Success(w, http.StatusOK, items)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.SaveItems(r.Context(), chi.URLParam(r, "id"), req.Items)
	if err != nil {
		h.fail(w, "save invoice", err)
		return
	}
	httpx.Success(w, http.StatusOK, res)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "invoice document", err)
		return
	}
	httpx.Success(w, http.StatusOK, doc)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
