package handler

import (
	"net/http"

	"github.com/mmeshcher/atompoint/internal/model"
)

type updateUserRequest struct {
	Banned  *bool `json:"banned"`
	IsAdmin *bool `json:"isAdmin"`
}

type broadcastRequest struct {
	Message   string  `json:"message"`
	TargetIDs []int64 `json:"targetIds"`
}

type broadcastResponse struct {
	Sent int `json:"sent"`
}

// ListUsers возвращает всех пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateUser блокирует пользователя или меняет его роль.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, userID, model.UserUpdate{Banned: req.Banned, IsAdmin: req.IsAdmin})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Notifications возвращает входящие пользователя.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	notifications, err := h.service.Notifications(r.Context(), id, userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "nid")
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), id, userID, notificationID); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Broadcast рассылает сообщение пользователям.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req broadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sent, err := h.service.Broadcast(r.Context(), id, req.Message, req.TargetIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, broadcastResponse{Sent: sent})
}
