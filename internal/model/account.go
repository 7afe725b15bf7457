package model

import (
	"errors"
	"strings"
	"time"
)

// Role is the closed set of account roles.  Wire values follow the
// training-center vocabulary used by the frontend.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "formateur"
	RoleLearner Role = "apprenant"
)

// legacyLearnerAlias is accepted on input and normalized to RoleLearner.
const legacyLearnerAlias = "etudiant"

// ErrUnknownRole is returned by ParseRole for values outside the role set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole normalizes a client supplied role.  The legacy "etudiant" alias
// maps to RoleLearner; an empty value defaults to RoleLearner.
func ParseRole(s string) (Role, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", legacyLearnerAlias, string(RoleLearner):
		return RoleLearner, nil
	case string(RoleTrainer):
		return RoleTrainer, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	default:
		return "", ErrUnknownRole
	}
}

// Status is the workflow status of an account.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRefused   Status = "refused"
	StatusRejected  Status = "rejected"

	// Legacy values kept for rows written by older clients.
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// InitialStatus returns the status assigned to a freshly created account.
func InitialStatus(r Role) Status {
	if r == RoleAdmin {
		return StatusValidated
	}
	return StatusPending
}

// ParseStatus accepts any known status value.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusValidated, StatusRefused, StatusRejected, StatusActive, StatusInactive:
		return st, true
	}
	return "", false
}

// CredentialKind tags how a stored password must be checked.
type CredentialKind int

const (
	CredentialHashed CredentialKind = iota
	CredentialLegacyPlaintext
)

// Credential is the stored password in one of two forms.  Legacy plaintext
// values are migrated to CredentialHashed on the next successful login.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// bcryptPrefixes are the version prefixes produced by bcrypt implementations.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// ParseCredential classifies a stored password column value.
func ParseCredential(stored string) Credential {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return Credential{Kind: CredentialHashed, Value: stored}
		}
	}
	return Credential{Kind: CredentialLegacyPlaintext, Value: stored}
}

// IsLegacy reports whether the credential still needs migration.
func (c Credential) IsLegacy() bool { return c.Kind == CredentialLegacyPlaintext }

// Account mirrors the `accounts` table.  The credential and Google tokens
// never leave the service in JSON.
type Account struct {
	ID         uint64     `json:"id"`
	Email      string     `json:"email"`
	Credential Credential `json:"-"`
	Role       Role       `json:"role"`
	Status     Status     `json:"status"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      string     `json:"phone,omitempty"`

	Verified              bool       `json:"verified"`
	VerificationCode      *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`

	AccessCode *string `json:"-"`

	GoogleID           *string `json:"-"`
	GoogleAccessToken  *string `json:"-"`
	GoogleRefreshToken *string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAccessCode reports whether a trainer access code has been issued.
func (a Account) HasAccessCode() bool { return a.AccessCode != nil && *a.AccessCode != "" }

// FullName joins first and last name for greetings.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// NewAccount holds the fields required to insert an account.
type NewAccount struct {
	Email                 string
	PasswordHash          string
	Role                  Role
	Status                Status
	FirstName             string
	LastName              string
	Phone                 string
	Verified              bool
	VerificationCode      *string
	VerificationExpiresAt *time.Time
	GoogleID              *string
	GoogleAccessToken     *string
	GoogleRefreshToken    *string
}

// Profile is the self-service editable part of an account.
type Profile struct {
	FirstName string
	LastName  string
	Phone     string
}
