package httpremote

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/notesync/pkg/core"
)

// Handler serves the note API on top of any core.Service. It speaks the
// same wire format as Client and backs local fakes of the remote service.
type Handler struct {
	svc    core.Service
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler returns an http.Handler exposing svc under the API paths.
func NewHandler(svc core.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST "+PathList, h.list)
	h.mux.HandleFunc("POST "+PathDetail, h.detail)
	h.mux.HandleFunc("POST "+PathUpsert, h.upsert)
	h.mux.HandleFunc("POST "+PathDeleteMany, h.deleteMany)
	h.mux.HandleFunc("POST "+PathUpdateMany, h.updateMany)
	h.mux.HandleFunc("GET "+PathTags, h.tags)
	h.mux.HandleFunc("GET "+PathDailyReview, h.dailyReview)
	h.mux.HandleFunc("GET "+PathConfig, h.config)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !h.decode(w, r, &req) {
		return
	}
	notes, err := h.svc.List(r.Context(), req.Filter, req.Page, req.Size)
	h.reply(w, notes, err)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.svc.Detail(r.Context(), req.ID)
	h.reply(w, n, err)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var in core.NoteInput
	if !h.decode(w, r, &in) {
		return
	}
	n, err := h.svc.Upsert(r.Context(), in)
	h.reply(w, n, err)
}

func (h *Handler) deleteMany(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reply(w, nil, h.svc.DeleteMany(r.Context(), req.IDs))
}

func (h *Handler) updateMany(w http.ResponseWriter, r *http.Request) {
	var req updateManyRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.reply(w, nil, h.svc.UpdateMany(r.Context(), req.IDs, req.Patch))
}

func (h *Handler) tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	h.reply(w, tags, err)
}

func (h *Handler) dailyReview(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.DailyReview(r.Context())
	h.reply(w, notes, err)
}

func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context())
	h.reply(w, cfg, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiError{Message: "malformed request: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) reply(w http.ResponseWriter, v any, err error) {
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("service call failed", "error", err)
		}
		h.writeJSON(w, status, apiError{Message: err.Error()})
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

// errorStatus is the inverse of statusError.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidNote):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnavailable), errors.Is(err, core.ErrOffline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
