package handler

import (
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/mmeshcher/atompoint/internal/model"
)

type paymentAccount struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

type adminContactBody struct {
	AdminContact string `json:"adminContact"`
}

// PaymentDetails возвращает реквизиты в виде method -> {name, number}.
func (h *Handler) PaymentDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.PaymentDetails(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make(map[string]paymentAccount, len(details))
	for _, d := range details {
		resp[d.Method] = paymentAccount{Name: d.Name, Number: d.Number}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdatePaymentDetails заменяет реквизиты целиком.
func (h *Handler) UpdatePaymentDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req map[string]paymentAccount
	if !decodeJSON(w, r, &req) {
		return
	}

	details := make([]model.PaymentDetail, 0, len(req))
	for _, method := range slices.Sorted(maps.Keys(req)) {
		details = append(details, model.PaymentDetail{
			Method: method,
			Name:   req[method].Name,
			Number: req[method].Number,
		})
	}

	if err := h.service.UpdatePaymentDetails(r.Context(), id, details); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminContact возвращает контакт администратора.
func (h *Handler) AdminContact(w http.ResponseWriter, r *http.Request) {
	contact, err := h.service.AdminContact(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, adminContactBody{AdminContact: contact})
}

// UpdateAdminContact сохраняет контакт администратора.
func (h *Handler) UpdateAdminContact(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req adminContactBody
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateAdminContact(r.Context(), id, req.AdminContact); err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, adminContactBody{AdminContact: strings.TrimSpace(req.AdminContact)})
}
