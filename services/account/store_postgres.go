package account

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
)

// PostgresPrincipalStore persists principals in the principals table.
type PostgresPrincipalStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresPrincipalStore wraps an open database handle.
func NewPostgresPrincipalStore(db *sql.DB, logger *zap.Logger) *PostgresPrincipalStore {
	return &PostgresPrincipalStore{db: db, logger: logger}
}

const principalColumns = `id, email, username, role, active, verified, mfa_enabled,
       credential_hash, failed_login_attempts, last_login`

func (s *PostgresPrincipalStore) FindByUsername(ctx context.Context, username string) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE username = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, username))
}

func (s *PostgresPrincipalStore) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresPrincipalStore) Create(ctx context.Context, p *models.Principal) error {
	query := `
		INSERT INTO principals (
			id, email, username, role, active, verified, mfa_enabled,
			credential_hash, failed_login_attempts, last_login
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Email, p.Username, p.Role, p.Active, p.Verified,
		p.MFAEnabled, p.CredentialHash, p.FailedLoginAttempts, p.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}

	s.logger.Debug("principal created", zap.String("id", p.ID))
	return nil
}

func (s *PostgresPrincipalStore) Update(ctx context.Context, p *models.Principal) error {
	query := `
		UPDATE principals
		SET email = $2, username = $3, role = $4, active = $5, verified = $6,
		    mfa_enabled = $7, credential_hash = $8, failed_login_attempts = $9,
		    last_login = $10
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		p.ID, p.Email, p.Username, p.Role, p.Active, p.Verified,
		p.MFAEnabled, p.CredentialHash, p.FailedLoginAttempts, p.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("failed to update principal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("principal not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresPrincipalStore) scanOne(row *sql.Row) (*models.Principal, error) {
	p := &models.Principal{}
	err := row.Scan(
		&p.ID, &p.Email, &p.Username, &p.Role, &p.Active, &p.Verified,
		&p.MFAEnabled, &p.CredentialHash, &p.FailedLoginAttempts, &p.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan principal: %w", err)
	}
	return p, nil
}
