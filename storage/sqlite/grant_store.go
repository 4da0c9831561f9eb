package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitatrack/auth-server/grants"
)

// GrantRepo implements grants.Repo.
type GrantRepo struct {
	store *Store
}

func (s *Store) Grants() *GrantRepo {
	return &GrantRepo{store: s}
}

const grantColumns = `id, owner_user_id, grantee_user_id, grantee_email, permissions, valid_until, is_active, status, created_at, updated_at`

func (r *GrantRepo) Insert(ctx context.Context, grant *grants.Grant) error {
	permissions, err := json.Marshal(grant.Permissions)
	if err != nil {
		return fmt.Errorf("[GrantRepo.Insert] permissions: %w", err)
	}

	granteeID, _ := grant.Grantee.UserID()
	var validUntil sql.NullString
	if grant.ValidUntil != nil {
		validUntil = sql.NullString{String: formatTime(*grant.ValidUntil), Valid: true}
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.ID, grant.OwnerUserID, granteeID, strings.ToLower(grant.Grantee.Email()),
		string(permissions), validUntil, grant.IsActive, string(grant.Status),
		formatTime(grant.CreatedAt), formatTime(grant.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("[GrantRepo.Insert] %w", err)
	}
	return nil
}

func (r *GrantRepo) GetByID(ctx context.Context, id string) (*grants.Grant, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("[GrantRepo.GetByID] %w", err)
	}
	defer rows.Close()

	list, err := scanGrants(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *GrantRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*grants.Grant, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE owner_user_id = ? ORDER BY created_at DESC`,
		ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("[GrantRepo.ListByOwner] %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

func (r *GrantRepo) ListForGrantee(ctx context.Context, userID, email string) ([]*grants.Grant, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM access_grants
		WHERE grantee_user_id = ? OR (grantee_user_id = '' AND grantee_email = ?)
		ORDER BY created_at DESC`,
		userID, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("[GrantRepo.ListForGrantee] %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

func (r *GrantRepo) Update(ctx context.Context, ownerUserID string, grant *grants.Grant) (bool, error) {
	permissions, err := json.Marshal(grant.Permissions)
	if err != nil {
		return false, fmt.Errorf("[GrantRepo.Update] permissions: %w", err)
	}

	var validUntil sql.NullString
	if grant.ValidUntil != nil {
		validUntil = sql.NullString{String: formatTime(*grant.ValidUntil), Valid: true}
	}

	res, err := r.store.db.ExecContext(ctx, `
		UPDATE access_grants
		SET permissions = ?, valid_until = ?, is_active = ?, status = ?, updated_at = ?
		WHERE id = ? AND owner_user_id = ?`,
		string(permissions), validUntil, grant.IsActive, string(grant.Status),
		formatTime(grant.UpdatedAt), grant.ID, ownerUserID,
	)
	if err != nil {
		return false, fmt.Errorf("[GrantRepo.Update] %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("[GrantRepo.Update] rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GrantRepo) Delete(ctx context.Context, ownerUserID, id string) (bool, error) {
	res, err := r.store.db.ExecContext(ctx,
		`DELETE FROM access_grants WHERE id = ? AND owner_user_id = ?`, id, ownerUserID)
	if err != nil {
		return false, fmt.Errorf("[GrantRepo.Delete] %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("[GrantRepo.Delete] rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanGrants(rows *sql.Rows) ([]*grants.Grant, error) {
	var out []*grants.Grant
	for rows.Next() {
		var (
			grant        grants.Grant
			granteeID    string
			granteeEmail string
			permissions  string
			validUntil   sql.NullString
			status       string
			createdAt    string
			updatedAt    string
		)
		err := rows.Scan(&grant.ID, &grant.OwnerUserID, &granteeID, &granteeEmail,
			&permissions, &validUntil, &grant.IsActive, &status, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("[sqlite scanGrants] %w", err)
		}

		if granteeID != "" {
			grant.Grantee = grants.ResolvedGrantee(granteeID, granteeEmail)
		} else {
			grant.Grantee = grants.PendingGrantee(granteeEmail)
		}
		if err := json.Unmarshal([]byte(permissions), &grant.Permissions); err != nil {
			return nil, fmt.Errorf("[sqlite scanGrants] permissions: %w", err)
		}
		if validUntil.Valid {
			t := parseTime(validUntil.String)
			grant.ValidUntil = &t
		}
		grant.Status = grants.Status(status)
		grant.CreatedAt = parseTime(createdAt)
		grant.UpdatedAt = parseTime(updatedAt)
		out = append(out, &grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[sqlite scanGrants] %w", err)
	}
	return out, nil
}

var _ grants.Repo = (*GrantRepo)(nil)
