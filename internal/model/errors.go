package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, если запись не найдена (или товар неактивен).
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается при нарушении уникальности.
	ErrConflict = errors.New("already exists")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuantity возвращается, если количество товара меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidAmount возвращается при неположительной или дробной сумме пополнения.
	ErrInvalidAmount = errors.New("amount must be a positive whole number of credits")
	// ErrInsufficientStock возвращается, если остаток товара стал бы отрицательным.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientCredits возвращается, если баланс стал бы отрицательным.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden возвращается, если у вызывающего нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap позволяет сравнивать ошибку валидации с ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
