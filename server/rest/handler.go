package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vidfetch/vidfetch/server/internal/downloaders"
	"github.com/vidfetch/vidfetch/server/internal/extractor"
	"github.com/vidfetch/vidfetch/server/internal/kv"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
	"github.com/vidfetch/vidfetch/server/internal/queue"
	"github.com/vidfetch/vidfetch/server/internal/resolver"
	"github.com/vidfetch/vidfetch/server/updater"
)

type Handler struct {
	service *Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.Any("err", err))
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) Formats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req formatsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := h.service.Formats(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req downloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := h.service.Download(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, res)
	}
}

func (h *Handler) Running() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.Running(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.Status(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Cancel(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "ok")
	}
}

func (h *Handler) File() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, name, err := h.service.File(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		fd, err := h.service.pipeline.Fs().Open(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		defer fd.Close()

		info, err := fd.Stat()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, name, info.ModTime(), fd)
	}
}

func (h *Handler) Cleanup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.service.Cleanup(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
	}
}

func (h *Handler) DeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.service.DeleteSession(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
	}
}

func (h *Handler) Logs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := h.service.Logs(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, lines)
	}
}

func (h *Handler) GetVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.GetVersion(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.Update(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	var (
		blocked *extractor.AccessBlockedError
		failure *extractor.ExtractionFailure
	)

	switch {
	case errors.Is(err, kv.ErrSessionNotFound),
		errors.Is(err, kv.ErrDownloadNotFound),
		errors.Is(err, ErrNotFinished):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionBusy),
		errors.Is(err, downloaders.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, ErrMissingURL),
		errors.Is(err, pipeline.ErrNoMetadata),
		errors.Is(err, pipeline.ErrUnknownFormat),
		errors.Is(err, resolver.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.As(err, &blocked):
		return http.StatusForbidden
	case errors.Is(err, ErrVersionTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, queue.ErrQueueStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, updater.ErrUpdateFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
