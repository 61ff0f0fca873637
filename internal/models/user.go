package models

import (
	"math"
	"time"
)

// UserRole represents the available roles on the platform.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTutor   UserRole = "tutor"
	RoleAdmin   UserRole = "admin"
)

// ValidRole reports whether the given role is one of the supported roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleStudent, RoleTutor, RoleAdmin:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"name"`
	Avatar       string    `db:"avatar" json:"avatar"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Ref returns the compact reference view embedded in request payloads.
func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.FullName, Email: u.Email, Avatar: u.Avatar}
}

// UserRef is the expanded reference shape {name, email, avatar} returned
// alongside request documents.
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Active *bool
	Search string
	Page   int
	Limit  int
}

// Pagination contains pagination metadata returned in list responses.
// Pages is always ceil(Total/Limit).
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
	Total       int `json:"total"`
	Pages       int `json:"pages"`
}

// NewPagination normalises page/limit and computes the page count.
func NewPagination(page, limit, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return &Pagination{
		CurrentPage: page,
		Limit:       limit,
		Total:       total,
		Pages:       int(math.Ceil(float64(total) / float64(limit))),
	}
}
