package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitatrack/auth-server/grants"
	"github.com/vitatrack/auth-server/provider"
	"github.com/vitatrack/auth-server/secrets"
	"github.com/vitatrack/auth-server/storage/sqlite"
	"github.com/vitatrack/auth-server/users"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProviderRepoLatestReturnsNewestRecord(t *testing.T) {
	store := openStore(t)
	repo := store.Providers()
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)

	older := &provider.Record{
		ID:        "rec-1",
		IssuerURL: "https://old.example.com",
		ClientID:  "client-old",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &provider.Record{
		ID:        "rec-2",
		IssuerURL: "https://new.example.com",
		ClientID:  "client-new",
		Secret: secrets.SealedSecret{
			Ciphertext: "deadbeef",
			Nonce:      "0102030405060708090a0b0c",
			Tag:        "cafebabe",
		},
		RedirectURIs:        []string{"https://app.example.com/oidc-callback"},
		Scope:               "openid email profile",
		ResponseTypes:       []string{"code"},
		RequestTimeout:      10 * time.Second,
		AutoRegister:        true,
		EnablePasswordLogin: true,
		IsActive:            true,
		CreatedAt:           time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "rec-2", latest.ID)
	require.Equal(t, "https://new.example.com", latest.IssuerURL)
	require.Equal(t, newer.Secret, latest.Secret)
	require.Equal(t, []string{"https://app.example.com/oidc-callback"}, latest.RedirectURIs)
	require.Equal(t, 10*time.Second, latest.RequestTimeout)
	require.True(t, latest.AutoRegister)
	require.True(t, latest.IsActive)
	require.True(t, latest.CreatedAt.Equal(newer.CreatedAt))
}

func TestUserRepoCreateWithPreferences(t *testing.T) {
	store := openStore(t)
	repo := store.Users()
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	account := &users.Account{
		ID:               "user-1",
		Email:            "Casey@Example.com",
		FederatedSubject: "idp-subject-1",
		Role:             users.RoleUser,
		DisplayName:      "Casey",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.CreateWithPreferences(ctx, account, users.DefaultPreferences()))

	loaded, err := repo.GetByEmail(ctx, "CASEY@example.COM")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "user-1", loaded.ID)
	require.Equal(t, "casey@example.com", loaded.Email)
	require.Equal(t, "idp-subject-1", loaded.FederatedSubject)
	require.Equal(t, users.RoleUser, loaded.Role)

	prefs, err := repo.Preferences(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, prefs, len(users.DefaultPreferences()))
}

func TestUserRepoCreateWithPreferencesIsAtomic(t *testing.T) {
	store := openStore(t)
	repo := store.Users()
	ctx := context.Background()

	// A duplicated preference key violates the primary key mid-transaction;
	// the account row must not survive the rollback.
	bad := []users.NutrientPreference{
		{ViewGroup: "summary", Platform: "desktop", VisibleNutrients: []string{"calories"}},
		{ViewGroup: "summary", Platform: "desktop", VisibleNutrients: []string{"protein"}},
	}
	account := &users.Account{
		ID:        "user-atomic",
		Email:     "atomic@example.com",
		Role:      users.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.Error(t, repo.CreateWithPreferences(ctx, account, bad))

	loaded, err := repo.GetByEmail(ctx, "atomic@example.com")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestUserRepoSetFederatedSubject(t *testing.T) {
	store := openStore(t)
	repo := store.Users()
	ctx := context.Background()

	account := &users.Account{
		ID:        "user-2",
		Email:     "link@example.com",
		Role:      users.RoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateWithPreferences(ctx, account, nil))
	require.NoError(t, repo.SetFederatedSubject(ctx, "user-2", "idp-subject-2"))

	loaded, err := repo.GetByID(ctx, "user-2")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "idp-subject-2", loaded.FederatedSubject)
}

func TestGrantRepoRoundtrip(t *testing.T) {
	store := openStore(t)
	repo := store.Grants()
	ctx := context.Background()

	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	until := now.Add(30 * 24 * time.Hour)
	resolved := &grants.Grant{
		ID:          "grant-1",
		OwnerUserID: "owner-1",
		Grantee:     grants.ResolvedGrantee("grantee-1", "Friend@Example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityCalorie: true},
		ValidUntil:  &until,
		IsActive:    true,
		Status:      grants.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	pending := &grants.Grant{
		ID:          "grant-2",
		OwnerUserID: "owner-1",
		Grantee:     grants.PendingGrantee("invitee@example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityReports: true},
		IsActive:    true,
		Status:      grants.StatusPending,
		CreatedAt:   now.Add(time.Minute),
		UpdatedAt:   now.Add(time.Minute),
	}
	require.NoError(t, repo.Insert(ctx, resolved))
	require.NoError(t, repo.Insert(ctx, pending))

	got, err := repo.GetByID(ctx, "grant-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	id, ok := got.Grantee.UserID()
	require.True(t, ok)
	require.Equal(t, "grantee-1", id)
	require.Equal(t, "friend@example.com", got.Grantee.Email())
	require.True(t, got.Permissions[grants.CapabilityCalorie])
	require.NotNil(t, got.ValidUntil)
	require.True(t, got.ValidUntil.Equal(until))

	got, err = repo.GetByID(ctx, "grant-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	_, ok = got.Grantee.UserID()
	require.False(t, ok)
	require.Equal(t, "invitee@example.com", got.Grantee.Email())
	require.Nil(t, got.ValidUntil)

	missing, err := repo.GetByID(ctx, "no-such-grant")
	require.NoError(t, err)
	require.Nil(t, missing)

	byOwner, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, byOwner, 2)
}

func TestGrantRepoListForGrantee(t *testing.T) {
	store := openStore(t)
	repo := store.Grants()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Insert(ctx, &grants.Grant{
		ID:          "grant-resolved",
		OwnerUserID: "owner-1",
		Grantee:     grants.ResolvedGrantee("grantee-1", "friend@example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityMood: true},
		IsActive:    true,
		Status:      grants.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	require.NoError(t, repo.Insert(ctx, &grants.Grant{
		ID:          "grant-pending",
		OwnerUserID: "owner-2",
		Grantee:     grants.PendingGrantee("friend@example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityCheckin: true},
		IsActive:    true,
		Status:      grants.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	require.NoError(t, repo.Insert(ctx, &grants.Grant{
		ID:          "grant-other",
		OwnerUserID: "owner-3",
		Grantee:     grants.ResolvedGrantee("someone-else", "other@example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityCalorie: true},
		IsActive:    true,
		Status:      grants.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	list, err := repo.ListForGrantee(ctx, "grantee-1", "friend@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	require.ElementsMatch(t, []string{"grant-resolved", "grant-pending"}, ids)
}

func TestGrantRepoUpdateAndDeleteAreOwnerScoped(t *testing.T) {
	store := openStore(t)
	repo := store.Grants()
	ctx := context.Background()

	now := time.Now()
	grant := &grants.Grant{
		ID:          "grant-scoped",
		OwnerUserID: "owner-1",
		Grantee:     grants.ResolvedGrantee("grantee-1", "friend@example.com"),
		Permissions: map[grants.Capability]bool{grants.CapabilityCalorie: true},
		IsActive:    true,
		Status:      grants.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Insert(ctx, grant))

	grant.Permissions = map[grants.Capability]bool{grants.CapabilityReports: true}
	matched, err := repo.Update(ctx, "not-the-owner", grant)
	require.NoError(t, err)
	require.False(t, matched)

	stored, err := repo.GetByID(ctx, "grant-scoped")
	require.NoError(t, err)
	require.True(t, stored.Permissions[grants.CapabilityCalorie])
	require.False(t, stored.Permissions[grants.CapabilityReports])

	matched, err = repo.Update(ctx, "owner-1", grant)
	require.NoError(t, err)
	require.True(t, matched)

	stored, err = repo.GetByID(ctx, "grant-scoped")
	require.NoError(t, err)
	require.True(t, stored.Permissions[grants.CapabilityReports])

	matched, err = repo.Delete(ctx, "not-the-owner", "grant-scoped")
	require.NoError(t, err)
	require.False(t, matched)

	matched, err = repo.Delete(ctx, "owner-1", "grant-scoped")
	require.NoError(t, err)
	require.True(t, matched)

	gone, err := repo.GetByID(ctx, "grant-scoped")
	require.NoError(t, err)
	require.Nil(t, gone)
}
