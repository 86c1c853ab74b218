package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
)

// TokenRepository persists access tokens obtained through the login flow.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save stores token as the newest token for its login, replacing older ones.
func (r *TokenRepository) Save(token *models.CachedToken) error {
	if token.ID() == "" {
		token.SetID(shared.GenerateID())
	}

	if err := token.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tokens WHERE login = ?", token.Login); err != nil {
		return fmt.Errorf("failed to replace token: %w", err)
	}

	var expiresAt sql.NullTime
	if token.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *token.ExpiresAt, Valid: true}
	}

	query := `
		INSERT INTO tokens (id, login, token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, token.ID(), token.Login, token.Token, token.UserID, expiresAt, token.CreatedAt()); err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token: %w", err)
	}
	return nil
}

// Latest returns the newest token for login, or any login when login is empty.
func (r *TokenRepository) Latest(login string) (*models.CachedToken, error) {
	query := `
		SELECT id, login, token, user_id, expires_at, created_at
		FROM tokens
	`
	args := []any{}
	if login != "" {
		query += " WHERE login = ?"
		args = append(args, login)
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	var (
		id        string
		l         string
		tok       string
		userID    string
		expiresAt sql.NullTime
		createdAt time.Time
	)

	err := r.db.QueryRow(query, args...).Scan(&id, &l, &tok, &userID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no token for %q", ErrNotFound, login)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	var exp *time.Time
	if expiresAt.Valid {
		exp = &expiresAt.Time
	}

	token := models.NewCachedToken(l, tok, userID, exp)
	token.SetID(id)
	token.SetCreatedAt(createdAt)
	return token, nil
}

// Delete removes the tokens of login and returns how many were removed.
func (r *TokenRepository) Delete(login string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM tokens WHERE login = ?", login)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAll removes every cached token and returns how many were removed.
func (r *TokenRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec("DELETE FROM tokens")
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}
	return result.RowsAffected()
}
