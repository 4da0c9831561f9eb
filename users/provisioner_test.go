package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/users"
	"github.com/vitatrack/auth-server/users/repofake"
)

const (
	testEmail   = "jane.doe@example.com"
	testSubject = "provider-subject-123"
	testName    = "Jane Doe"
)

func newProvisioner(t *testing.T) (*users.Provisioner, *repofake.FakeUserRepo) {
	t.Helper()
	repo := repofake.NewFakeUserRepo()
	p, err := users.NewProvisioner(repo)
	require.NoError(t, err)
	return p, repo
}

func TestResolveCreatesAccountWithDefaultPreferences(t *testing.T) {
	p, repo := newProvisioner(t)

	account, err := p.Resolve(context.Background(), testEmail, testName, testSubject)
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.Equal(t, testEmail, account.Email)
	require.Equal(t, testSubject, account.FederatedSubject)
	require.Equal(t, users.RoleUser, account.Role)
	require.False(t, account.CanPasswordLogin(), "federated account must have a non-usable password")

	prefs := repo.Preferences(account.ID)
	require.Equal(t, users.DefaultPreferences(), prefs, "new account must get the complete default preference set")
}

func TestResolveIsCaseInsensitiveOnEmail(t *testing.T) {
	p, _ := newProvisioner(t)

	first, err := p.Resolve(context.Background(), "Jane.Doe@Example.COM", testName, testSubject)
	require.NoError(t, err)

	second, err := p.Resolve(context.Background(), testEmail, testName, testSubject)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveIsIdempotent(t *testing.T) {
	p, repo := newProvisioner(t)

	first, err := p.Resolve(context.Background(), testEmail, testName, testSubject)
	require.NoError(t, err)
	mutations := repo.MutationCount()

	second, err := p.Resolve(context.Background(), testEmail, testName, testSubject)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, mutations, repo.MutationCount(), "second resolve must perform no mutation")
}

func TestResolveLinksSubjectToPasswordAccount(t *testing.T) {
	p, repo := newProvisioner(t)

	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	existing := &users.Account{
		ID:           "existing-id",
		Email:        testEmail,
		PasswordHash: hash,
		Role:         users.RoleUser,
	}
	require.NoError(t, repo.CreateWithPreferences(context.Background(), existing, users.DefaultPreferences()))

	account, err := p.Resolve(context.Background(), testEmail, testName, testSubject)
	require.NoError(t, err)
	require.Equal(t, "existing-id", account.ID, "must link, not create a duplicate")
	require.Equal(t, testSubject, account.FederatedSubject)
	require.True(t, account.CanPasswordLogin(), "password path must survive federation linking")
	require.True(t, account.IsFederated())
}

func TestResolveRequiresEmailAndSubject(t *testing.T) {
	p, _ := newProvisioner(t)

	_, err := p.Resolve(context.Background(), "", testName, testSubject)
	require.ErrorIs(t, err, errors.ErrProvisioning)

	_, err = p.Resolve(context.Background(), testEmail, testName, "")
	require.ErrorIs(t, err, errors.ErrProvisioning)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Password123", hash))
	require.False(t, users.CheckPasswordHash("wrong", hash))
	require.False(t, users.CheckPasswordHash("Password123", ""), "empty hash never authenticates")
}
