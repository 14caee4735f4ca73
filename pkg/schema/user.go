// Package schema defines the records persisted by the PropertyDex store.
// Field names follow the JSON wire shape of the remote backend tables.
package schema

import "time"

// Role is the platform role attached to a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleIssuer   Role = "issuer"
	RoleInvestor Role = "investor"
	RoleUser     Role = "user"
)

// KYCStatus tracks identity verification.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// AccreditationStatus tracks investor accreditation.
type AccreditationStatus string

const (
	AccreditationNone       AccreditationStatus = "none"
	AccreditationPending    AccreditationStatus = "pending"
	AccreditationAccredited AccreditationStatus = "accredited"
)

// UserProfile is the identity record created at sign-up.
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Country     string    `json:"country"`
	KYCVerified bool      `json:"kyc_verified"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRole is 1:1 with UserProfile by UserID.
type UserRole struct {
	UserID              string              `json:"user_id"`
	Role                Role                `json:"role"`
	KYCStatus           KYCStatus           `json:"kyc_status"`
	AccreditationStatus AccreditationStatus `json:"accreditation_status"`
	UpdatedAt           time.Time           `json:"updated_at"`
}
