package models

import (
	"strings"
	"time"
)

// Role is the display form of the authorization label stored in identity
// metadata. Server-side checks compare the raw metadata string ("admin"),
// this type only shapes API responses.
type Role string

const (
	RoleUser  Role = "User"
	RolePro   Role = "Pro"
	RoleElite Role = "Elite"
	RoleAdmin Role = "Admin"
)

// DisplayRole normalizes a stored role string for the dashboard. Anything
// unrecognized renders as a plain User.
func DisplayRole(role string) Role {
	switch strings.ToLower(role) {
	case "admin":
		return RoleAdmin
	case "pro":
		return RolePro
	case "elite":
		return RoleElite
	default:
		return RoleUser
	}
}

// Status is cosmetic account state. It is never enforced in request handling.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// DisplayStatus normalizes a stored status string.
func DisplayStatus(status string) Status {
	if strings.ToLower(status) == "active" {
		return StatusActive
	}
	return StatusInactive
}

// UserView is the shape the admin console renders.
type UserView struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	Plan         Plan   `json:"plan"`
	StorageUsed  int64  `json:"storageUsed"`
	StorageLimit int64  `json:"storageLimit"`
	Status       Status `json:"status"`
	CreatedAt    string `json:"createdAt"`
	Avatar       string `json:"avatar"`
}

// Initials builds the avatar initials from a full name, at most two letters.
func Initials(fullName string) string {
	var b strings.Builder
	for _, part := range strings.Fields(fullName) {
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
		if len([]rune(b.String())) >= 2 {
			break
		}
	}
	return b.String()
}

// FullName joins first and last name, defaulting when both are empty.
func FullName(first, last string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return "Unknown User"
	}
	return name
}

// SplitName splits a full name into the first/last fields the identity
// provider stores.
func SplitName(fullName string) (first, last string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// FormatCreatedAt renders a provider timestamp for the dashboard, falling
// back to now when the provider reports none.
func FormatCreatedAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
