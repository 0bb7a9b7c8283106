package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/low-stock", h.lowStock)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/stock-card", h.stockCard)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:   q.Get("search"),
		Status:   StockStatus(q.Get("status")),
		Category: q.Get("category"),
	}
	filter.LowStock, _ = strconv.ParseBool(q.Get("lowStock"))
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	parts, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list parts", err)
		return
	}
	httpx.Success(w, http.StatusOK, parts)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	parts, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.Success(w, http.StatusOK, parts)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreatePartInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	part, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create part", err)
		return
	}
	httpx.Success(w, http.StatusCreated, part)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	part, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get part", err)
		return
	}
	httpx.Success(w, http.StatusOK, part)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch PartPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	part, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, "update part", err)
		return
	}
	httpx.Success(w, http.StatusOK, part)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete part", err)
		return
	}
	httpx.Success(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.StockCard(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, "stock card", err)
		return
	}
	httpx.Success(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
