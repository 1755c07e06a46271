// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mmeshcher/atompoint/internal/model"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 6
	MaxMessageLength  = 2000
)

// PaymentMethodCard обозначает реквизиты банковской карты.
const PaymentMethodCard = "card"

// Username проверяет имя пользователя.
func Username(username string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(username))
	if n < MinUsernameLength {
		return model.NewValidationError("username", "must be at least 3 characters")
	}
	if n > MaxUsernameLength {
		return model.NewValidationError("username", "is too long")
	}
	return nil
}

// Password проверяет длину пароля.
func Password(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewValidationError(field, "must be at least 6 characters")
	}
	return nil
}

// Required проверяет, что значение не пустое после обрезки пробелов.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return model.NewValidationError(field, "is required")
	}
	return nil
}

// Message проверяет текст уведомления.
func Message(text string) error {
	if err := Required("message", text); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return model.NewValidationError("message", "is too long")
	}
	return nil
}

// PaymentDetail проверяет реквизиты: для карты номер должен проходить проверку Луна.
func PaymentDetail(d model.PaymentDetail) error {
	if err := Required("method", d.Method); err != nil {
		return err
	}
	if err := Required("name", d.Name); err != nil {
		return err
	}
	if err := Required("number", d.Number); err != nil {
		return err
	}
	if strings.EqualFold(d.Method, PaymentMethodCard) && !IsValidCardNumber(d.Number) {
		return model.NewValidationError("number", "is not a valid card number")
	}
	return nil
}

// IsValidCardNumber проверяет номер карты по алгоритму Луна. Пробелы и дефисы игнорируются.
func IsValidCardNumber(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)

	if len(digits) < 12 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(digits) - 1; i >= 0; i-- {
		ch := rune(digits[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
