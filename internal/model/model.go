// Package model содержит доменные сущности маркетплейса Atom Point.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя, от которой зависят права доступа.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleFromFlag возвращает роль по признаку администратора.
func RoleFromFlag(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Identity описывает вызывающего пользователя, установленного слоем аутентификации.
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin сообщает, обладает ли вызывающий правами администратора.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// User представляет зарегистрированного пользователя маркетплейса.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Balance         int64     `json:"credits"`
	SecurityDeposit int64     `json:"securityAmount"`
	Banned          bool      `json:"banned"`
	Role            Role      `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"-"`
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserUpdate описывает административное изменение пользователя. Nil-поля не изменяются.
type UserUpdate struct {
	Banned  *bool
	IsAdmin *bool
}

// Product описывает товар каталога.
type Product struct {
	ID          int64
	Name        string
	Category    string
	Subcategory string
	Description string
	ImageURL    string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductUpdate описывает административное изменение товара. Nil-поля не изменяются.
// Остаток меняется только через StockDelta, чтобы проверка неотрицательности оставалась в каталоге.
type ProductUpdate struct {
	Name        *string
	Description *string
	ImageURL    *string
	Price       *decimal.Decimal
	Active      *bool
	StockDelta  int
}

// Notification описывает сообщение во входящих пользователя.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaymentDetail описывает реквизиты, на которые пользователь переводит оплату пополнения.
type PaymentDetail struct {
	Method string `json:"method"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// AuthResult содержит выданный токен и данные вошедшего пользователя.
type AuthResult struct {
	Token string
	User  *User
}
