package model

import "time"

// Role names stored in users.role and in the JWT "role" claim.
const (
    RoleTraveler = "traveler"
    RoleGuide    = "guide"
    RoleAdmin    = "admin"
)

// User represents an application user record as stored in the
// `users` table.  Guides are created unapproved and cannot publish
// experiences until an admin flips IsApproved; travelers and admins
// are approved on creation.
//
// Fields:
//  ID           - primary key identifier of the user.
//  Email        - unique, lower-cased email address.
//  PasswordHash - bcrypt hashed password (never serialised).
//  Name         - display name.
//  Role         - traveler, guide or admin.
//  Phone        - optional contact number.
//  Location     - optional home location (mostly used by guides).
//  Bio          - optional free-text biography.
//  IsApproved   - approval flag for guides.
//  CreatedAt    - timestamp of creation.
//  UpdatedAt    - timestamp of last update.
type User struct {
    ID           uint64    `json:"id"`
    Email        string    `json:"email"`
    PasswordHash string    `json:"-"`
    Name         string    `json:"name"`
    Role         string    `json:"role"`
    Phone        *string   `json:"phone,omitempty"`
    Location     *string   `json:"location,omitempty"`
    Bio          *string   `json:"bio,omitempty"`
    IsApproved   bool      `json:"is_approved"`
    CreatedAt    time.Time `json:"created_at"`
    UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
    switch r {
    case RoleTraveler, RoleGuide, RoleAdmin:
        return true
    }
    return false
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only
// the SHA-256 hash of the opaque token handed to the client is kept.
type RefreshToken struct {
    ID        uint64
    UserID    uint64
    TokenHash string
    ExpiresAt time.Time
    RevokedAt *time.Time
    CreatedAt time.Time
}
