package auth

import (
	"strings"
	"time"
)

// Role gates what an authenticated user may change.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCashier:
		return true
	}
	return false
}

// User is an account that can sign in to the back office.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password;not null" json:"-"`
	Name         string    `gorm:"not null" json:"name"`
	Role         Role      `gorm:"not null;default:cashier" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the identity carried by a verified token.
type Principal struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Session is returned after a successful login or registration.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
