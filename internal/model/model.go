// Package model defines domain entities used by services and repositories.
package model

import (
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
)

// RememberMeTTL is the fixed validity window of a remember-me token.
const RememberMeTTL = 7 * 24 * time.Hour

// Role is a label granted to a principal.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Patient is a single patient record. ID is zero until the store assigns one.
type Patient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birthDate"` // date only; zero means unknown
	Sick      bool      `json:"sick"`
	Score     int       `json:"score"`
}

// IsNew reports whether the record has not been persisted yet.
func (p Patient) IsNew() bool { return p.ID == 0 }

// Page is a slice of a filtered patient listing plus paging metadata.
type Page struct {
	Content       []Patient
	Index         int
	Size          int
	TotalElements int64
	TotalPages    int
}

// NewPage builds a Page and derives TotalPages = ceil(total/size).
func NewPage(content []Patient, index, size int, total int64) Page {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	if content == nil {
		content = []Patient{}
	}
	return Page{Content: content, Index: index, Size: size, TotalElements: total, TotalPages: pages}
}

// Principal is an authenticatable account. Passwords are never stored in plaintext.
type Principal struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte    // per-principal salt
	Roles     []Role
	CreatedAt time.Time
}

// Session is a server-held login session.
type Session struct {
	ID        string
	Username  string
	Roles     []Role // snapshot taken at login
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// RememberToken is the server-side record of an issued remember-me token.
type RememberToken struct {
	Series    uuid.UUID // carried as jti in the signed cookie value
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity is the caller resolved for one request.
type Identity struct {
	Username  string
	Roles     []Role
	SessionID string
}

// HasRole reports plain membership; roles are not hierarchical.
func (i *Identity) HasRole(r Role) bool {
	return i != nil && slices.Contains(i.Roles, r)
}

// IdentityFromSession projects a session onto a request identity.
func IdentityFromSession(s Session) Identity {
	return Identity{Username: s.Username, Roles: slices.Clone(s.Roles), SessionID: s.ID}
}
