package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leave-notifier/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserViewDropsCredentials(t *testing.T) {
	user := types.User{
		ID:           7,
		Username:     "alice",
		Email:        "alice@example.com",
		Name:         "Alice",
		SuperUser:    true,
		PasswordHash: "$2a$10$secret",
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	view := UserView(user)
	assert.Equal(t, user.ID, view.ID)
	assert.Equal(t, user.Username, view.Username)
	assert.Equal(t, user.Email, view.Email)
	assert.Equal(t, user.Name, view.Name)
	assert.Equal(t, user.SuperUser, view.SuperUser)
	assert.Equal(t, user.CreatedAt, view.CreatedAt)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
}

func TestLeaveViewCarriesAllFields(t *testing.T) {
	leave := types.Leave{
		ID:            3,
		Username:      "bob",
		DateCreated:   time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		From:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:            time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Justification: "family visit",
		Means:         types.MeansInPerson,
		Status:        types.StatusApproved,
		AttachmentKey: "leaves/3/doctor-note.pdf",
	}

	view := LeaveView(leave)
	assert.Equal(t, leave.ID, view.ID)
	assert.Equal(t, leave.Username, view.Username)
	assert.Equal(t, leave.DateCreated, view.DateCreated)
	assert.Equal(t, leave.From, view.From)
	assert.Equal(t, leave.To, view.To)
	assert.Equal(t, leave.Justification, view.Justification)
	assert.Equal(t, leave.Means, view.Means)
	assert.Equal(t, leave.Status, view.Status)
	assert.Equal(t, leave.AttachmentKey, view.AttachmentKey)
}

func TestViewSlicesPreserveOrder(t *testing.T) {
	users := []types.User{{Username: "a"}, {Username: "b"}, {Username: "c"}}
	views := UserViews(users)
	require.Len(t, views, 3)
	for i, user := range users {
		assert.Equal(t, user.Username, views[i].Username)
	}

	assert.Empty(t, UserViews(nil))
	assert.Empty(t, LeaveViews(nil))
}
