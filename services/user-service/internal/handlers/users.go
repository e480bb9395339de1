package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/avdupont/shopmesh/libs/events"
	"github.com/avdupont/shopmesh/libs/httpx"
	"github.com/avdupont/shopmesh/services/user-service/internal/outbox"
	"github.com/avdupont/shopmesh/services/user-service/internal/storage"
	"github.com/google/uuid"
)

type Handler struct {
	repo   storage.Repository
	outbox *outbox.Queue
	logger *slog.Logger
}

func New(logger *slog.Logger, repo storage.Repository, queue *outbox.Queue) *Handler {
	return &Handler{repo: repo, outbox: queue, logger: logger}
}

// Users serves GET /users and POST /users.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// UserByID serves GET /users/{id}.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/users/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "user #"+raw+" not found")
		return
	}
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	httpx.OKData(w, u)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	httpx.OKList(w, len(users), users)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		httpx.Error(w, http.StatusBadRequest, `the "name" and "email" fields are required`)
		return
	}

	u, err := h.repo.Insert(r.Context(), req.Name, req.Email)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	// The event is queued after the commit but must never gate the response:
	// a broker outage degrades replication, not user creation.
	h.publishCreated(r, u)

	httpx.Created(w, "user created", u)
}

func (h *Handler) publishCreated(r *http.Request, u storage.User) {
	evt := events.UserCreated{ID: u.ID, Name: u.Name, Email: u.Email}
	payload, err := evt.Encode()
	if err != nil {
		h.logger.Error("user created event not published", "user_id", u.ID, "err", err)
		return
	}
	h.outbox.Enqueue(r.Context(), outbox.Envelope{
		EventID:   uuid.NewString(),
		EventType: events.TopicUserCreated,
		Key:       evt.Key(),
		Payload:   payload,
	})
}
