package auth

import (
	"time"

	"rollcall/pkg/domain"
)

// Role gates what an account may do. Students mark attendance; faculty start
// sessions and issue vouchers for their own courses.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// User is an account. PasswordHash is a bcrypt hash, never the plaintext.
type User struct {
	ID           domain.UserID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
