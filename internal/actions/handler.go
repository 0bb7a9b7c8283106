package actions

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// defaultBodyBytes leaves room for a base64 encoded image in uploadImage.
const defaultBodyBytes = 16 << 20

// Request is the body of a POST action.
type Request struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	FileID  string `json:"fileId,omitempty"`
}

// Handler exposes the Dispatcher over HTTP.
type Handler struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	bodyBytes  int64
}

// NewHandler constructs Handler. bodyBytes caps POST bodies; zero uses 16 MiB.
func NewHandler(logger *slog.Logger, dispatcher *Dispatcher, bodyBytes int64) *Handler {
	if bodyBytes <= 0 {
		bodyBytes = defaultBodyBytes
	}
	return &Handler{logger: logger, dispatcher: dispatcher, bodyBytes: bodyBytes}
}

// MountRoutes registers the action endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.query)
	r.Post("/", h.command)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := make(map[string]string, len(q))
	for k := range q {
		params[k] = q.Get(k)
	}
	action := q.Get("action")
	out, err := h.dispatcher.Query(r.Context(), action, params)
	h.write(w, action, out, err)
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSONLimit(r, &req, h.bodyBytes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.dispatcher.Command(r.Context(), req.Action, req.Payload)
	h.write(w, req.Action, out, err)
}

func (h *Handler) write(w http.ResponseWriter, action string, out Outcome, err error) {
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("action failed", slog.String("action", action), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, response{
		Status:  "success",
		Data:    out.Data,
		Message: out.Message,
		URL:     out.URL,
		FileID:  out.FileID,
	})
}
