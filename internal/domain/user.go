package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level granted to a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account. Records are never updated after creation.
type User struct {
	ID           string
	Login        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal derives the authenticated identity from the stored record.
func (u *User) Principal() Principal {
	return Principal{Login: u.Login, Role: u.Role}
}

// Principal is the identity attached to a request after successful authentication.
type Principal struct {
	Login string
	Role  Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Credentials carries a login attempt. It is never persisted.
type Credentials struct {
	Login    string
	Password string
}

// String masks the password so credentials are safe to print.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Login: %q, Password: ***}", c.Login)
}

func (c Credentials) GoString() string {
	return c.String()
}
