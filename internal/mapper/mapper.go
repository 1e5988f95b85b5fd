// Package mapper converts persisted entities into their API-visible
// views. The transforms are structural only: no business logic, no
// side effects, and no invented fields.
package mapper

import "github.com/leave-notifier/apiserver/types"

// UserView maps a User to its API shape, dropping credential material.
func UserView(user types.User) types.UserView {
	return types.UserView{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		SuperUser: user.SuperUser,
		CreatedAt: user.CreatedAt,
	}
}

// UserViews maps a slice of Users preserving order.
func UserViews(users []types.User) []types.UserView {
	views := make([]types.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, UserView(user))
	}
	return views
}

// LeaveView maps a Leave to its API shape. All fields carry over
// verbatim.
func LeaveView(leave types.Leave) types.LeaveView {
	return types.LeaveView{
		ID:            leave.ID,
		Username:      leave.Username,
		DateCreated:   leave.DateCreated,
		From:          leave.From,
		To:            leave.To,
		Justification: leave.Justification,
		Means:         leave.Means,
		Status:        leave.Status,
		AttachmentKey: leave.AttachmentKey,
	}
}

// LeaveViews maps a slice of Leaves preserving order.
func LeaveViews(leaves []types.Leave) []types.LeaveView {
	views := make([]types.LeaveView, 0, len(leaves))
	for _, leave := range leaves {
		views = append(views, LeaveView(leave))
	}
	return views
}
