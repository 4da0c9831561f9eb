// Package grants models delegated access: time-bounded, capability-scoped
// permissions one account extends to another over its data.
package grants

import (
	"context"
	"time"
)

// Capability names a kind of user data a grant can cover. The set is
// closed in this version; extending it means extending the inheritance
// table deliberately.
type Capability string

const (
	CapabilityCalorie  Capability = "calorie"
	CapabilityCheckin  Capability = "checkin"
	CapabilityMood     Capability = "mood"
	CapabilityReports  Capability = "reports"
	CapabilityFoodList Capability = "food_list"
)

// impliedBy is the fixed inheritance table: the capabilities whose grant
// also authorizes read access to the key. One-directional broadenings,
// evaluated as an OR against the direct permission check.
var impliedBy = map[Capability][]Capability{
	CapabilityCalorie: {CapabilityReports, CapabilityFoodList},
	CapabilityCheckin: {CapabilityReports},
	CapabilityMood:    {CapabilityReports},
}

// Status tracks whether a grant's grantee has been resolved to an account.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// Grantee identifies who a grant is for: either a resolved account id, or
// just an email awaiting registration. The email is always recorded so a
// pending grant can resolve by email match at evaluation time.
type Grantee struct {
	userID string
	email  string
}

// ResolvedGrantee names a grantee by account id.
func ResolvedGrantee(userID, email string) Grantee {
	return Grantee{userID: userID, email: email}
}

// PendingGrantee names a grantee only by email.
func PendingGrantee(email string) Grantee {
	return Grantee{email: email}
}

// UserID returns the resolved account id, and whether one is present.
func (g Grantee) UserID() (string, bool) {
	return g.userID, g.userID != ""
}

// Email returns the grantee email.
func (g Grantee) Email() string {
	return g.email
}

// Grant is one delegated-access entry.
type Grant struct {
	ID          string
	OwnerUserID string
	Grantee     Grantee
	Permissions map[Capability]bool
	ValidUntil  *time.Time // nil = indefinite
	IsActive    bool
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveAt reports whether the grant is in force at the given instant.
// Expiry is lazy: validity is evaluated at read time against the clock.
func (g *Grant) EffectiveAt(now time.Time) bool {
	if !g.IsActive {
		return false
	}
	return g.ValidUntil == nil || g.ValidUntil.After(now)
}

// Authorizes reports whether the grant covers the capability, either
// directly or through inheritance.
func (g *Grant) Authorizes(capability Capability) bool {
	if g.Permissions[capability] {
		return true
	}
	for _, broader := range impliedBy[capability] {
		if g.Permissions[broader] {
			return true
		}
	}
	return false
}

// Repo persists grants. Zero-row lookups return nil results, never errors;
// only infrastructure failures are errors. Update and Delete are scoped to
// the owning account and report whether a row matched.
type Repo interface {
	Insert(ctx context.Context, grant *Grant) error
	GetByID(ctx context.Context, id string) (*Grant, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]*Grant, error)
	// ListForGrantee returns grants whose grantee resolves to the given
	// account id, or whose pending email matches the given email.
	ListForGrantee(ctx context.Context, userID, email string) ([]*Grant, error)
	Update(ctx context.Context, ownerUserID string, grant *Grant) (bool, error)
	Delete(ctx context.Context, ownerUserID, id string) (bool, error)
}
