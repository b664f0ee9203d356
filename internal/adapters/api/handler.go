package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
	"github.com/floroz/gavel-live/internal/domain/items"
	"github.com/floroz/gavel-live/pkg/auth"
)

const timeLayout = time.RFC3339Nano

// Handler serves the REST routes
type Handler struct {
	items     *items.Service
	history   bids.HistoryRepository
	clock     *clock.Service
	startedAt time.Time
	logger    *slog.Logger
}

// NewHandler creates the REST handler
func NewHandler(itemService *items.Service, history bids.HistoryRepository, clockService *clock.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		items:     itemService,
		history:   history,
		clock:     clockService,
		startedAt: clockService.Now().ServerTime,
		logger:    logger,
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	now := h.clock.Now().ServerTime
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now.Format(timeLayout),
		Uptime:    now.Sub(h.startedAt).Seconds(),
	})
}

func (h *Handler) serverTime(w http.ResponseWriter, _ *http.Request) {
	reading := h.clock.Now()
	writeJSON(w, http.StatusOK, ServerTimeResponse{
		ServerTime: reading.ServerTime.Format(timeLayout),
		Timestamp:  reading.Timestamp,
	})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	query := items.ListItemsQuery{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	list, err := h.items.ListActiveItems(r.Context(), query)
	if err != nil {
		h.logger.Error("Error getting active items", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	views := make([]ItemView, len(list))
	for i, item := range list {
		views[i] = newItemView(item)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Item not found", "")
		return
	}

	item, err := h.items.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "Item not found", "")
			return
		}
		h.logger.Error("Error getting item", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, newItemView(item))
}

// myBids runs behind auth.RequireUser
func (h *Handler) myBids(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(auth.MustGetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	entries, err := h.history.GetBidsByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error fetching user bids", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to fetch user bids")
		return
	}

	views := make([]BidView, len(entries))
	for i, entry := range entries {
		views[i] = newBidView(entry)
	}
	writeJSON(w, http.StatusOK, MyBidsResponse{Bids: views, Count: len(views)})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found", "")
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, ErrorResponse{Error: title, Message: message})
}
