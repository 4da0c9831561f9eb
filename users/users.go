package users

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user role
type RoleType string

const (
	RoleUser  RoleType = "user"
	RoleAdmin RoleType = "admin"
)

// Account is a local user account. Federated-only accounts carry a
// non-usable password placeholder; password accounts may later gain a
// federated subject, at which point both login paths work.
type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"` // never serialize
	FederatedSubject string    `json:"-"` // provider's stable subject identifier, empty when unlinked
	Role             RoleType  `json:"role"`
	DisplayName      string    `json:"display_name,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// CanPasswordLogin reports whether this account has a usable password.
func (a *Account) CanPasswordLogin() bool {
	return a.PasswordHash != ""
}

// IsFederated reports whether this account is linked to a federated subject.
func (a *Account) IsFederated() bool {
	return a.FederatedSubject != ""
}

// Repo persists accounts. Email lookups are case-insensitive. Zero-row
// lookups return (nil, nil); only infrastructure failures are errors.
type Repo interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	// CreateWithPreferences creates the account and seeds its default
	// preference rows atomically: both succeed or neither does.
	CreateWithPreferences(ctx context.Context, account *Account, prefs []NutrientPreference) error
	SetFederatedSubject(ctx context.Context, id, subject string) error
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
