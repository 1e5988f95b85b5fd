package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsersRequiresAuthentication(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", true)
	h.users.listCalls = 0

	status, _ := h.request(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Zero(t, h.users.listCalls, "repository must not be hit for unauthenticated requests")
}

func TestListUsersRequiresSuperUser(t *testing.T) {
	h := newHarness(t)
	token := h.seedUser(t, "bob", false)
	h.users.listCalls = 0

	status, _ := h.request(t, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Zero(t, h.users.listCalls, "repository must not be hit for unauthorized requests")
}

func TestListUsersReturnsSeededUsers(t *testing.T) {
	h := newHarness(t)
	token := h.seedUser(t, "alice", true)
	h.seedUser(t, "bob", false)

	status, body := h.request(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, status)

	var users []struct {
		Username  string `json:"username"`
		SuperUser bool   `json:"super_user"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &users))
	require.Len(t, users, 2)

	names := map[string]bool{}
	for _, user := range users {
		names[user.Username] = user.SuperUser
	}
	assert.True(t, names["alice"])
	assert.False(t, names["bob"])
	assert.NotContains(t, body, "password")
}

func TestGetUserByUsername(t *testing.T) {
	h := newHarness(t)
	token := h.seedUser(t, "alice", true)

	status, body := h.request(t, http.MethodGet, "/api/users/alice", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"username":"alice"`)
}

func TestGetUnknownUserReturns404WithName(t *testing.T) {
	h := newHarness(t)
	token := h.seedUser(t, "alice", true)

	status, body := h.request(t, http.MethodGet, "/api/users/casper", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "casper")
}

func TestGetUserIsIdempotent(t *testing.T) {
	h := newHarness(t)
	token := h.seedUser(t, "alice", true)

	_, first := h.request(t, http.MethodGet, "/api/users/alice", token, nil)
	_, second := h.request(t, http.MethodGet, "/api/users/alice", token, nil)
	assert.Equal(t, first, second)
}
