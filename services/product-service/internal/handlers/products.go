package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/avdupont/shopmesh/libs/httpx"
	"github.com/avdupont/shopmesh/services/product-service/internal/storage"
)

type Handler struct {
	repo   storage.Repository
	logger *slog.Logger
}

func New(logger *slog.Logger, repo storage.Repository) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Products serves GET /products and POST /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ProductByID serves GET /products/{id}.
func (h *Handler) ProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/products/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "product #"+raw+" not found")
		return
	}
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	httpx.OKData(w, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	httpx.OKList(w, len(products), products)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string   `json:"name"`
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price == nil {
		httpx.Error(w, http.StatusBadRequest, `the "name" and "price" fields are required`)
		return
	}
	if *req.Price < 0 {
		httpx.Error(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	p, err := h.repo.Insert(r.Context(), req.Name, *req.Price)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	httpx.Created(w, "product created", p)
}
