package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leave-notifier/apiserver/internal/mapper"
	"github.com/leave-notifier/apiserver/internal/services"
	"github.com/leave-notifier/apiserver/types"
)

const (
	maxAttachmentMemory = 16 << 20
	maxAttachmentBytes  = 32 << 20
	formFieldAttachment = "attachment"
)

// LeavesHandler provides HTTP handlers for leave requests.
type LeavesHandler struct {
	leaveService *services.LeaveService
}

// NewLeavesHandler constructs a handler with the provided service.
func NewLeavesHandler(leaveService *services.LeaveService) *LeavesHandler {
	return &LeavesHandler{leaveService: leaveService}
}

// LeavesRouter registers leave routes on the given router. All routes
// require authentication; decisions and deletion additionally require
// the SuperUsers policy.
func LeavesRouter(r chi.Router, leaveService *services.LeaveService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewLeavesHandler(leaveService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListLeaves)
	r.Post("/", handler.CreateLeave)
	r.Route("/{leaveID}", func(r chi.Router) {
		r.Get("/", handler.GetLeave)
		r.With(RequireSuperUser).Put("/status", handler.DecideLeave)
		r.With(RequireSuperUser).Delete("/", handler.DeleteLeave)
		r.Post("/attachment", handler.UploadAttachment)
		r.Get("/attachment", handler.DownloadAttachment)
	})
}

// ListLeaves returns every leave for super users and only the
// caller's own leaves otherwise.
func (h *LeavesHandler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var leaves []types.Leave
	if principal.SuperUser {
		if filter := strings.TrimSpace(r.URL.Query().Get("user")); filter != "" {
			leaves, err = h.leaveService.ListForUser(r.Context(), filter)
		} else {
			leaves, err = h.leaveService.List(r.Context())
		}
	} else {
		leaves, err = h.leaveService.ListForUser(r.Context(), principal.Username)
	}
	if err != nil {
		writeServiceError(w, err, "no leaves found")
		return
	}

	writeJSON(w, http.StatusOK, mapper.LeaveViews(leaves))
}

// CreateLeave records a new leave request for the caller. Super users
// may file on behalf of another user.
func (h *LeavesHandler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req LeaveCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = principal.Username
	}
	if username != principal.Username && !principal.SuperUser {
		writeError(w, http.StatusForbidden, "cannot create leaves for other users")
		return
	}

	created, err := h.leaveService.Create(r.Context(), types.Leave{
		Username:      username,
		From:          req.From,
		To:            req.To,
		Justification: req.Justification,
		Means:         req.Means,
	})
	if err != nil {
		writeServiceError(w, err, "leave not found")
		return
	}

	writeJSON(w, http.StatusCreated, mapper.LeaveView(created))
}

// GetLeave returns a single leave, visible to its owner and to super
// users.
func (h *LeavesHandler) GetLeave(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.leaveService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}

	if !principal.SuperUser && leave.Username != principal.Username {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	writeJSON(w, http.StatusOK, mapper.LeaveView(leave))
}

// DecideLeave approves or denies a pending leave.
func (h *LeavesHandler) DecideLeave(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeaveID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req LeaveDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	decided, err := h.leaveService.Decide(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}

	writeJSON(w, http.StatusOK, mapper.LeaveView(decided))
}

// DeleteLeave removes a leave record.
func (h *LeavesHandler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeaveID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.leaveService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadAttachment stores a supporting document for the leave.
func (h *LeavesHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.leaveService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}
	if !principal.SuperUser && leave.Username != principal.Username {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldAttachment]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one attachment file is required")
		return
	}

	fileHeader := files[0]
	if fileHeader.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "attachment too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read attachment")
		return
	}
	defer file.Close()

	updated, err := h.leaveService.AttachDocument(
		r.Context(),
		id,
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}

	writeJSON(w, http.StatusOK, mapper.LeaveView(updated))
}

// DownloadAttachment streams the supporting document of the leave.
func (h *LeavesHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.requestContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.leaveService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, fmt.Sprintf("cannot get leave (%d) information", id))
		return
	}
	if !principal.SuperUser && leave.Username != principal.Username {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	reader, key, err := h.leaveService.OpenAttachment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "attachment not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	_, _ = io.Copy(w, reader)
}

// LeaveCreateRequest is the JSON payload for creating a leave.
// Username is optional and only honored for super users.
type LeaveCreateRequest struct {
	Username      string      `json:"username,omitempty"`
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	Justification string      `json:"justification"`
	Means         types.Means `json:"means"`
}

// LeaveDecisionRequest is the JSON payload for approving or denying.
type LeaveDecisionRequest struct {
	Status types.Status `json:"status"`
}

func (h *LeavesHandler) requestContext(r *http.Request) (Principal, int, error) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		return Principal{}, 0, errors.New("unauthorized")
	}
	id, err := parseLeaveID(r)
	if err != nil {
		return Principal{}, 0, err
	}
	return principal, id, nil
}

func parseLeaveID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "leaveID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid leave id")
	}
	return id, nil
}
