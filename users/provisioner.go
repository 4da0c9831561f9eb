package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vitatrack/auth-server/internal/errors"
)

// Provisioner finds or creates local accounts for federated identities.
type Provisioner struct {
	repo    Repo
	nowTime func() time.Time
}

// ProvisionerOption modifies a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ProvisionerOption {
	return func(p *Provisioner) {
		p.nowTime = nowFunc
	}
}

func NewProvisioner(repo Repo, options ...ProvisionerOption) (*Provisioner, error) {
	if repo == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[NewProvisioner] repo is required")
	}
	p := &Provisioner{repo: repo, nowTime: time.Now}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Resolve returns the local account for a federated identity, creating or
// linking as needed:
//   - no account for the email: create one with a generated id, a
//     non-usable password placeholder, and the federated subject, seeding
//     default preference rows in the same transaction
//   - account exists without a federated subject: bind the subject,
//     converting a password-only account into a dual-mode one
//   - account exists and is bound: no mutation
//
// The returned account is always re-read after mutation, so callers never
// see stale fields. Calling twice with the same email+subject is idempotent.
func (p *Provisioner) Resolve(ctx context.Context, email, displayName, subject string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || subject == "" {
		return nil, errors.Wrapf(errors.ErrProvisioning, "[Provisioner.Resolve] email and subject are required")
	}

	account, err := p.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrapf(err, "[Provisioner.Resolve] GetByEmail")
	}

	switch {
	case account == nil:
		id := uuid.New().String()
		newAccount := &Account{
			ID:               id,
			Email:            email,
			PasswordHash:     "", // federated-only, no usable password
			FederatedSubject: subject,
			Role:             RoleUser,
			DisplayName:      displayName,
			CreatedAt:        p.nowTime(),
			UpdatedAt:        p.nowTime(),
		}
		if err := p.repo.CreateWithPreferences(ctx, newAccount, DefaultPreferences()); err != nil {
			return nil, errors.Wrapf(errors.ErrProvisioning, "[Provisioner.Resolve] create account: %v", err)
		}
		log.Info().Str("user_id", id).Msg("auto-registered federated account")

	case account.FederatedSubject == "":
		if err := p.repo.SetFederatedSubject(ctx, account.ID, subject); err != nil {
			return nil, errors.Wrapf(errors.ErrProvisioning, "[Provisioner.Resolve] link federated subject: %v", err)
		}
		log.Info().Str("user_id", account.ID).Msg("linked federated subject to existing account")

	default:
		// already bound, nothing to mutate
	}

	resolved, err := p.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrapf(err, "[Provisioner.Resolve] re-read account")
	}
	if resolved == nil {
		return nil, errors.Wrapf(errors.ErrProvisioning, "[Provisioner.Resolve] account vanished after provisioning")
	}
	return resolved, nil
}
