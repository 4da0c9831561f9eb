package grants

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/users"
)

// Engine evaluates and mutates delegated-access grants. Pending grants
// are resolved at evaluation time by matching their recorded email against
// the requester's account email; no promotion step runs on registration.
type Engine struct {
	grants  Repo
	users   users.Repo
	nowTime func() time.Time
}

// EngineOption modifies an Engine.
type EngineOption func(*Engine)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowTime = nowFunc
	}
}

func NewEngine(grantRepo Repo, userRepo users.Repo, options ...EngineOption) (*Engine, error) {
	if grantRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewEngine] grant repo is required")
	}
	if userRepo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewEngine] user repo is required")
	}
	e := &Engine{grants: grantRepo, users: userRepo, nowTime: time.Now}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// CheckAccess decides whether requester may act on the target account's
// data for the given capability. Owners always access their own data. The
// result is a plain boolean; absence of a grant is not an error.
func (e *Engine) CheckAccess(ctx context.Context, requesterID, targetUserID string, capability Capability) (bool, error) {
	if requesterID == targetUserID {
		return true, nil
	}

	ownerGrants, err := e.grants.ListByOwner(ctx, targetUserID)
	if err != nil {
		return false, errors.Wrapf(err, "[Engine.CheckAccess] ListByOwner")
	}

	now := e.nowTime()
	requesterEmail := ""
	requesterLoaded := false

	for _, grant := range ownerGrants {
		if !grant.EffectiveAt(now) {
			continue
		}

		if userID, resolved := grant.Grantee.UserID(); resolved {
			if userID != requesterID {
				continue
			}
		} else {
			// Pending grant: resolve by email against the requester's account.
			if !requesterLoaded {
				requester, err := e.users.GetByID(ctx, requesterID)
				if err != nil {
					return false, errors.Wrapf(err, "[Engine.CheckAccess] load requester")
				}
				if requester != nil {
					requesterEmail = requester.Email
				}
				requesterLoaded = true
			}
			if requesterEmail == "" || !strings.EqualFold(grant.Grantee.Email(), requesterEmail) {
				continue
			}
		}

		if grant.Authorizes(capability) {
			return true, nil
		}
	}
	return false, nil
}

// Create stores a new grant from owner to the account behind granteeEmail.
// If that email has no account yet the grant is stored pending, becoming
// effective once the email registers.
func (e *Engine) Create(ctx context.Context, ownerID, granteeEmail string, permissions map[Capability]bool, validUntil *time.Time) (*Grant, error) {
	granteeEmail = strings.ToLower(strings.TrimSpace(granteeEmail))
	if ownerID == "" || granteeEmail == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Engine.Create] owner and grantee email are required")
	}

	grantee := PendingGrantee(granteeEmail)
	status := StatusPending
	account, err := e.users.GetByEmail(ctx, granteeEmail)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.Create] grantee lookup")
	}
	if account != nil {
		grantee = ResolvedGrantee(account.ID, granteeEmail)
		status = StatusActive
	}

	perms := make(map[Capability]bool, len(permissions))
	for capability, allowed := range permissions {
		perms[capability] = allowed
	}

	grant := &Grant{
		ID:          uuid.New().String(),
		OwnerUserID: ownerID,
		Grantee:     grantee,
		Permissions: perms,
		ValidUntil:  validUntil,
		IsActive:    true,
		Status:      status,
		CreatedAt:   e.nowTime(),
		UpdatedAt:   e.nowTime(),
	}
	if err := e.grants.Insert(ctx, grant); err != nil {
		return nil, errors.Wrapf(err, "[Engine.Create] Insert")
	}
	return grant, nil
}

// UpdateInput carries a partial grant mutation. Nil fields keep the
// stored value.
type UpdateInput struct {
	Permissions     map[Capability]bool
	ValidUntil      *time.Time
	ClearValidUntil bool
	IsActive        *bool
}

// Update mutates a grant the caller owns. A grant that does not exist or
// belongs to another owner fails with ErrNotFound either way, so a
// non-owner learns nothing about the grant's existence.
func (e *Engine) Update(ctx context.Context, ownerID, grantID string, input UpdateInput) (*Grant, error) {
	grant, err := e.grants.GetByID(ctx, grantID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.Update] GetByID")
	}
	if grant == nil || grant.OwnerUserID != ownerID {
		return nil, errors.Wrapf(errors.ErrNotFound, "[Engine.Update] grant %s", grantID)
	}

	if input.Permissions != nil {
		perms := make(map[Capability]bool, len(input.Permissions))
		for capability, allowed := range input.Permissions {
			perms[capability] = allowed
		}
		grant.Permissions = perms
	}
	if input.ClearValidUntil {
		grant.ValidUntil = nil
	} else if input.ValidUntil != nil {
		grant.ValidUntil = input.ValidUntil
	}
	if input.IsActive != nil {
		grant.IsActive = *input.IsActive
	}
	grant.UpdatedAt = e.nowTime()

	matched, err := e.grants.Update(ctx, ownerID, grant)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.Update] Update")
	}
	if !matched {
		return nil, errors.Wrapf(errors.ErrNotFound, "[Engine.Update] grant %s", grantID)
	}
	return grant, nil
}

// Delete removes a grant the caller owns. Same NotFound semantics as Update.
func (e *Engine) Delete(ctx context.Context, ownerID, grantID string) error {
	matched, err := e.grants.Delete(ctx, ownerID, grantID)
	if err != nil {
		return errors.Wrapf(err, "[Engine.Delete] Delete")
	}
	if !matched {
		return errors.Wrapf(errors.ErrNotFound, "[Engine.Delete] grant %s", grantID)
	}
	return nil
}

// ListByOwner returns all grants the owner has extended, pending ones
// included.
func (e *Engine) ListByOwner(ctx context.Context, ownerID string) ([]*Grant, error) {
	list, err := e.grants.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.ListByOwner] ListByOwner")
	}
	return list, nil
}

// AccessibleUser describes an account the caller may act on through a
// currently effective grant.
type AccessibleUser struct {
	UserID      string              `json:"user_id"`
	Email       string              `json:"email"`
	DisplayName string              `json:"display_name,omitempty"`
	Permissions map[Capability]bool `json:"permissions"`
	ValidUntil  *time.Time          `json:"valid_until,omitempty"`
}

// AccessibleUsers lists the owners whose data the given account can
// currently access.
func (e *Engine) AccessibleUsers(ctx context.Context, userID string) ([]AccessibleUser, error) {
	account, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.AccessibleUsers] load account")
	}
	email := ""
	if account != nil {
		email = account.Email
	}

	grantsList, err := e.grants.ListForGrantee(ctx, userID, email)
	if err != nil {
		return nil, errors.Wrapf(err, "[Engine.AccessibleUsers] ListForGrantee")
	}

	now := e.nowTime()
	accessible := make([]AccessibleUser, 0, len(grantsList))
	for _, grant := range grantsList {
		if !grant.EffectiveAt(now) {
			continue
		}
		owner, err := e.users.GetByID(ctx, grant.OwnerUserID)
		if err != nil {
			return nil, errors.Wrapf(err, "[Engine.AccessibleUsers] load owner")
		}
		entry := AccessibleUser{
			UserID:      grant.OwnerUserID,
			Permissions: grant.Permissions,
			ValidUntil:  grant.ValidUntil,
		}
		if owner != nil {
			entry.Email = owner.Email
			entry.DisplayName = owner.DisplayName
		}
		accessible = append(accessible, entry)
	}
	return accessible, nil
}
