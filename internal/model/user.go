package model

import (
	"time"

	"github.com/pinnity/pinnity/internal/id"
)

// User is an account of any type. Vendors own exactly one Business.
type User struct {
	ID           id.ID     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     *string   `db:"username" json:"username,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	UserType     UserType  `db:"user_type" json:"user_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user may reach admin surfaces.
func (u *User) IsAdmin() bool { return u.UserType == UserAdmin }

// IsVendor reports whether the user manages a business.
func (u *User) IsVendor() bool { return u.UserType == UserBusiness }
