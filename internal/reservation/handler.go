// internal/reservation/handler.go
package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"librarium/internal/clients"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the reservation endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/items/{itemID}", h.HandleCreate)
	r.Post("/{id}/confirm", h.HandleConfirm)
	r.Post("/{id}/borrow", h.HandleBorrow)
	r.Post("/{id}/return", h.HandleReturn)
	r.Delete("/{id}", h.HandleCancel)
	r.Get("/", h.HandleActive)
	r.Get("/history", h.HandleHistory)
	r.Get("/all", h.HandleAll)
	return r
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	reservation, err := h.service.Create(r.Context(), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Confirm)
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Borrow)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Return)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*Reservation, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	reservation, err := op(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ActiveForHolder(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reservations, err := h.service.HistoryForHolder(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.All(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrNotFound), errors.Is(err, clients.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotAvailable), errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
