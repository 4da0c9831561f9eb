package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vitatrack/auth-server/provider"
)

// ProviderRepo implements provider.Repo.
type ProviderRepo struct {
	store *Store
}

func (s *Store) Providers() *ProviderRepo {
	return &ProviderRepo{store: s}
}

func (r *ProviderRepo) Latest(ctx context.Context) (*provider.Record, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, issuer_url, client_id,
		       encrypted_client_secret, client_secret_nonce, client_secret_tag,
		       redirect_uris, scope, token_endpoint_auth_method, response_types,
		       id_token_signing_alg, userinfo_signing_alg, request_timeout_ms,
		       auto_register, enable_password_login, is_active, created_at
		FROM oidc_settings
		ORDER BY created_at DESC
		LIMIT 1`)

	var (
		rec              provider.Record
		redirectURIs     string
		responseTypes    string
		requestTimeoutMS int64
		createdAt        string
	)
	err := row.Scan(
		&rec.ID, &rec.IssuerURL, &rec.ClientID,
		&rec.Secret.Ciphertext, &rec.Secret.Nonce, &rec.Secret.Tag,
		&redirectURIs, &rec.Scope, &rec.TokenEndpointAuthMethod, &responseTypes,
		&rec.IDTokenSigningAlg, &rec.UserinfoSigningAlg, &requestTimeoutMS,
		&rec.AutoRegister, &rec.EnablePasswordLogin, &rec.IsActive, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[ProviderRepo.Latest] %w", err)
	}

	if err := json.Unmarshal([]byte(redirectURIs), &rec.RedirectURIs); err != nil {
		return nil, fmt.Errorf("[ProviderRepo.Latest] redirect_uris: %w", err)
	}
	if err := json.Unmarshal([]byte(responseTypes), &rec.ResponseTypes); err != nil {
		return nil, fmt.Errorf("[ProviderRepo.Latest] response_types: %w", err)
	}
	rec.RequestTimeout = time.Duration(requestTimeoutMS) * time.Millisecond
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

func (r *ProviderRepo) Insert(ctx context.Context, rec *provider.Record) error {
	redirectURIs, err := json.Marshal(orEmptySlice(rec.RedirectURIs))
	if err != nil {
		return fmt.Errorf("[ProviderRepo.Insert] redirect_uris: %w", err)
	}
	responseTypes, err := json.Marshal(orEmptySlice(rec.ResponseTypes))
	if err != nil {
		return fmt.Errorf("[ProviderRepo.Insert] response_types: %w", err)
	}

	// The sealed secret triple is one value: all three columns land in a
	// single statement, never independently.
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO oidc_settings (
			id, issuer_url, client_id,
			encrypted_client_secret, client_secret_nonce, client_secret_tag,
			redirect_uris, scope, token_endpoint_auth_method, response_types,
			id_token_signing_alg, userinfo_signing_alg, request_timeout_ms,
			auto_register, enable_password_login, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IssuerURL, rec.ClientID,
		rec.Secret.Ciphertext, rec.Secret.Nonce, rec.Secret.Tag,
		string(redirectURIs), rec.Scope, rec.TokenEndpointAuthMethod, string(responseTypes),
		rec.IDTokenSigningAlg, rec.UserinfoSigningAlg, rec.RequestTimeout.Milliseconds(),
		rec.AutoRegister, rec.EnablePasswordLogin, rec.IsActive, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("[ProviderRepo.Insert] %w", err)
	}
	return nil
}

var _ provider.Repo = (*ProviderRepo)(nil)

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
