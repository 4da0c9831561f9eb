package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitatrack/auth-server/users"
)

// UserRepo implements users.Repo.
type UserRepo struct {
	store *Store
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{store: s}
}

const userColumns = `id, email, password_hash, federated_subject, role, display_name, created_at, updated_at`

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.Account, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(email))
	return scanAccount(row)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.Account, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanAccount(row)
}

// CreateWithPreferences inserts the account and its default preference
// rows in one transaction: both land or neither does.
func (r *UserRepo) CreateWithPreferences(ctx context.Context, account *users.Account, prefs []users.NutrientPreference) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[UserRepo.CreateWithPreferences] begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, federated_subject, role, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, strings.ToLower(account.Email), account.PasswordHash, account.FederatedSubject,
		string(account.Role), account.DisplayName, formatTime(account.CreatedAt), formatTime(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("[UserRepo.CreateWithPreferences] insert user: %w", err)
	}

	for _, pref := range prefs {
		nutrients, err := json.Marshal(pref.VisibleNutrients)
		if err != nil {
			return fmt.Errorf("[UserRepo.CreateWithPreferences] marshal nutrients: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nutrient_preferences (user_id, view_group, platform, visible_nutrients)
			VALUES (?, ?, ?, ?)`,
			account.ID, pref.ViewGroup, pref.Platform, string(nutrients),
		)
		if err != nil {
			return fmt.Errorf("[UserRepo.CreateWithPreferences] insert preference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[UserRepo.CreateWithPreferences] commit: %w", err)
	}
	return nil
}

func (r *UserRepo) SetFederatedSubject(ctx context.Context, id, subject string) error {
	_, err := r.store.db.ExecContext(ctx,
		`UPDATE users SET federated_subject = ?, updated_at = ? WHERE id = ?`,
		subject, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("[UserRepo.SetFederatedSubject] %w", err)
	}
	return nil
}

// Preferences returns the stored preference rows for an account.
func (r *UserRepo) Preferences(ctx context.Context, userID string) ([]users.NutrientPreference, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT view_group, platform, visible_nutrients
		FROM nutrient_preferences WHERE user_id = ?
		ORDER BY platform, view_group`, userID)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo.Preferences] %w", err)
	}
	defer rows.Close()

	var prefs []users.NutrientPreference
	for rows.Next() {
		var pref users.NutrientPreference
		var nutrients string
		if err := rows.Scan(&pref.ViewGroup, &pref.Platform, &nutrients); err != nil {
			return nil, fmt.Errorf("[UserRepo.Preferences] scan: %w", err)
		}
		if err := json.Unmarshal([]byte(nutrients), &pref.VisibleNutrients); err != nil {
			return nil, fmt.Errorf("[UserRepo.Preferences] nutrients: %w", err)
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}

func scanAccount(row *sql.Row) (*users.Account, error) {
	var (
		account   users.Account
		role      string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&account.ID, &account.Email, &account.PasswordHash,
		&account.FederatedSubject, &role, &account.DisplayName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite scanAccount] %w", err)
	}
	account.Role = users.RoleType(role)
	account.CreatedAt = parseTime(createdAt)
	account.UpdatedAt = parseTime(updatedAt)
	return &account, nil
}

var _ users.Repo = (*UserRepo)(nil)
