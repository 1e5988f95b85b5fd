package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leave-notifier/apiserver/internal/mapper"
	"github.com/leave-notifier/apiserver/internal/services"
)

// UsersHandler provides HTTP handlers for user administration.
type UsersHandler struct {
	userService *services.UserService
}

// NewUsersHandler constructs a handler with the provided service.
func NewUsersHandler(userService *services.UserService) *UsersHandler {
	return &UsersHandler{userService: userService}
}

// UsersRouter registers user routes on the given router. Every route
// sits behind the SuperUsers policy.
func UsersRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUsersHandler(userService)

	r.Use(authMiddleware, RequireSuperUser)
	r.Get("/", handler.ListUsers)
	r.Get("/{userName}", handler.GetUser)
}

func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "no users found")
		return
	}
	writeJSON(w, http.StatusOK, mapper.UserViews(users))
}

func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userName := strings.TrimSpace(chi.URLParam(r, "userName"))
	if userName == "" {
		writeError(w, http.StatusBadRequest, "user name is required")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), userName)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get user (%s) information", userName))
		return
	}
	writeJSON(w, http.StatusOK, mapper.UserView(user))
}
