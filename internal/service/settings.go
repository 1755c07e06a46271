package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/atompoint/internal/model"
	"github.com/mmeshcher/atompoint/internal/validation"
)

// PaymentDetails возвращает реквизиты для оплаты пополнений.
func (s *Service) PaymentDetails(ctx context.Context) ([]model.PaymentDetail, error) {
	return s.store.GetPaymentDetails(ctx)
}

// UpdatePaymentDetails заменяет реквизиты целиком. Только для администратора.
func (s *Service) UpdatePaymentDetails(ctx context.Context, actor model.Identity, details []model.PaymentDetail) error {
	if !actor.IsAdmin() {
		return model.ErrForbidden
	}

	seen := make(map[string]struct{}, len(details))
	for i := range details {
		details[i].Method = strings.TrimSpace(details[i].Method)
		if err := validation.PaymentDetail(details[i]); err != nil {
			return err
		}
		if _, ok := seen[details[i].Method]; ok {
			return model.NewValidationError("method", "is duplicated")
		}
		seen[details[i].Method] = struct{}{}
	}

	return s.store.ReplacePaymentDetails(ctx, details)
}

// AdminContact возвращает контакт администратора; если он не задан, возвращается значение по умолчанию.
func (s *Service) AdminContact(ctx context.Context) (string, error) {
	v, err := s.store.GetSetting(ctx, adminContactKey)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return defaultAdminContact, nil
		}
		return "", err
	}
	return v, nil
}

// UpdateAdminContact сохраняет контакт администратора. Только для администратора.
func (s *Service) UpdateAdminContact(ctx context.Context, actor model.Identity, contact string) error {
	if !actor.IsAdmin() {
		return model.ErrForbidden
	}
	contact = strings.TrimSpace(contact)
	if err := validation.Required("adminContact", contact); err != nil {
		return err
	}
	return s.store.PutSetting(ctx, adminContactKey, contact)
}
