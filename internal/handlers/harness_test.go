package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/internal/handlers"
	"github.com/leave-notifier/apiserver/internal/services"
	"github.com/leave-notifier/apiserver/internal/store"
	"github.com/leave-notifier/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testTokens = config.TokensConfig{
	Issuer:   "leavenotifier",
	Audience: "leavenotifier-api",
	Key:      "test-secret",
}

type memUsers struct {
	users     map[string]types.User
	listCalls int
}

func (m *memUsers) List(ctx context.Context) ([]types.User, error) {
	m.listCalls++
	users := make([]types.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	return users, nil
}

func (m *memUsers) GetByID(ctx context.Context, id int) (types.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, ok := m.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = len(m.users) + 1
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.Username] = user
	return user, nil
}

func (m *memUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	m.users[user.Username] = user
	return user, nil
}

func (m *memUsers) Delete(ctx context.Context, id int) error {
	for name, user := range m.users {
		if user.ID == id {
			delete(m.users, name)
			return nil
		}
	}
	return store.ErrNotFound
}

type memLeaves struct {
	leaves map[int]types.Leave
	nextID int
}

func (m *memLeaves) List(ctx context.Context) ([]types.Leave, error) {
	leaves := make([]types.Leave, 0, len(m.leaves))
	for _, leave := range m.leaves {
		leaves = append(leaves, leave)
	}
	return leaves, nil
}

func (m *memLeaves) ListByUsername(ctx context.Context, username string) ([]types.Leave, error) {
	leaves := make([]types.Leave, 0)
	for _, leave := range m.leaves {
		if leave.Username == username {
			leaves = append(leaves, leave)
		}
	}
	return leaves, nil
}

func (m *memLeaves) Get(ctx context.Context, id int) (types.Leave, error) {
	leave, ok := m.leaves[id]
	if !ok {
		return types.Leave{}, store.ErrNotFound
	}
	return leave, nil
}

func (m *memLeaves) Create(ctx context.Context, leave types.Leave) (types.Leave, error) {
	leave.ID = m.nextID
	leave.DateCreated = time.Now()
	m.nextID++
	m.leaves[leave.ID] = leave
	return leave, nil
}

func (m *memLeaves) UpdateStatus(ctx context.Context, id int, status types.Status) error {
	leave, ok := m.leaves[id]
	if !ok {
		return store.ErrNotFound
	}
	leave.Status = status
	m.leaves[id] = leave
	return nil
}

func (m *memLeaves) SetAttachmentKey(ctx context.Context, id int, key string) error {
	leave, ok := m.leaves[id]
	if !ok {
		return store.ErrNotFound
	}
	leave.AttachmentKey = key
	m.leaves[id] = leave
	return nil
}

func (m *memLeaves) Delete(ctx context.Context, id int) error {
	if _, ok := m.leaves[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.leaves, id)
	return nil
}

type harness struct {
	router *chi.Mux
	users  *memUsers
	leaves *memLeaves
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	users := &memUsers{users: make(map[string]types.User)}
	leaves := &memLeaves{leaves: make(map[int]types.Leave), nextID: 1}

	userService := services.NewUserService(users)
	leaveService := services.NewLeaveService(leaves, users, nil, nil, nil)
	authMiddleware := handlers.RequireAuth(testTokens)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, testTokens)
	})
	router.Route("/api/users", func(r chi.Router) {
		handlers.UsersRouter(r, userService, authMiddleware)
	})
	router.Route("/api/leaves", func(r chi.Router) {
		handlers.LeavesRouter(r, leaveService, authMiddleware)
	})

	return &harness{router: router, users: users, leaves: leaves}
}

// seedUser creates an account directly in the fake store and returns
// a bearer token obtained through the login endpoint.
func (h *harness) seedUser(t *testing.T, username string, superUser bool) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("pass-"+username), bcrypt.DefaultCost)
	require.NoError(t, err)

	_, err = h.users.Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		Name:         username,
		SuperUser:    superUser,
		PasswordHash: string(hashed),
	})
	require.NoError(t, err)

	status, body := h.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": "pass-" + username,
	})
	require.Equal(t, http.StatusOK, status, "login failed: %s", body)

	var parsed struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	require.NotEmpty(t, parsed.Token)
	return parsed.Token
}

func (h *harness) request(t *testing.T, method, target, token string, payload any) (int, string) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}
