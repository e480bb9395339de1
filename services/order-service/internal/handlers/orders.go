package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/avdupont/shopmesh/libs/httpx"
	"github.com/avdupont/shopmesh/services/order-service/internal/replica"
	"github.com/avdupont/shopmesh/services/order-service/internal/storage"
)

type Handler struct {
	repo   storage.Repository
	cache  *replica.Cache
	logger *slog.Logger
}

func New(logger *slog.Logger, repo storage.Repository, cache *replica.Cache) *Handler {
	return &Handler{repo: repo, cache: cache, logger: logger}
}

// Orders serves GET /orders and POST /orders.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	httpx.OKList(w, len(orders), orders)
}

// create validates the user reference against the replica cache only. A user
// whose creation event has not been observed yet is rejected with 404 even if
// it exists upstream; the client retries once replication catches up. Writes
// must not silently accept references the service cannot verify.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   *int64   `json:"userId"`
		Product  string   `json:"product"`
		Quantity *int     `json:"quantity"`
		Price    *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Product = strings.TrimSpace(req.Product)
	if req.UserID == nil || req.Product == "" || req.Quantity == nil || req.Price == nil {
		httpx.Error(w, http.StatusBadRequest, `the "userId", "product", "quantity" and "price" fields are required`)
		return
	}
	if *req.Quantity <= 0 {
		httpx.Error(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if *req.Price < 0 {
		httpx.Error(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	if _, ok := h.cache.Get(*req.UserID); !ok {
		httpx.Error(w, http.StatusNotFound, fmt.Sprintf("user #%d is unknown to this service; order rejected", *req.UserID))
		return
	}

	o, err := h.repo.Insert(r.Context(), storage.Order{
		UserID:   *req.UserID,
		Product:  req.Product,
		Quantity: *req.Quantity,
		Price:    *req.Price,
	})
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to create order")
		return
	}
	httpx.Created(w, "order created", o)
}

// OrderByID serves GET /orders/{id}, enriched with the replicated user.
// Unlike creation, reads degrade gracefully: when the user has not been
// replicated yet the order is still returned, flagged as unsynchronized.
func (h *Handler) OrderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/orders/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "order #"+raw+" not found")
		return
	}
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	data := map[string]any{
		"orderId":  o.ID,
		"userId":   o.UserID,
		"product":  o.Product,
		"quantity": o.Quantity,
		"price":    o.Price,
	}
	if u, ok := h.cache.Get(o.UserID); ok {
		data["user"] = u
		data["userSynced"] = true
	} else {
		data["user"] = nil
		data["userSynced"] = false
	}
	httpx.OKData(w, data)
}
