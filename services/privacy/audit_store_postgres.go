package privacy

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
)

// PostgresAuditStore persists the audit trail in the audit_entries table.
type PostgresAuditStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresAuditStore wraps an open database handle.
func NewPostgresAuditStore(db *sql.DB, logger *zap.Logger) *PostgresAuditStore {
	return &PostgresAuditStore{db: db, logger: logger}
}

func (s *PostgresAuditStore) Append(ctx context.Context, entry models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			id, timestamp, principal_id, action, resource_class, record_id,
			classification, purpose, ip_address, success
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.PrincipalID,
		entry.Action,
		entry.ResourceClass,
		entry.RecordID,
		entry.Classification,
		entry.Purpose,
		entry.IPAddress,
		entry.Success,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	s.logger.Debug("audit entry inserted",
		zap.String("id", entry.ID.String()),
		zap.String("action", entry.Action))
	return nil
}

func (s *PostgresAuditStore) Trail(ctx context.Context, filter TrailFilter) ([]models.AuditEntry, error) {
	var (
		conditions []string
		args       []interface{}
	)
	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.PrincipalID != "" {
		addCondition("principal_id = $%d", filter.PrincipalID)
	}
	if !filter.Start.IsZero() {
		addCondition("timestamp >= $%d", filter.Start)
	}
	if !filter.End.IsZero() {
		addCondition("timestamp <= $%d", filter.End)
	}

	query := `
		SELECT id, timestamp, principal_id, action, resource_class, record_id,
		       classification, purpose, ip_address, success
		FROM audit_entries
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.PrincipalID,
			&e.Action,
			&e.ResourceClass,
			&e.RecordID,
			&e.Classification,
			&e.Purpose,
			&e.IPAddress,
			&e.Success,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresAuditStore) CountExpired(ctx context.Context, resourceClass string, cutoff time.Time) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(timestamp), 'epoch'::timestamptz)
		FROM audit_entries
		WHERE resource_class = $1 AND timestamp < $2
	`

	var (
		count  int
		oldest time.Time
	)
	err := s.db.QueryRowContext(ctx, query, resourceClass, cutoff).Scan(&count, &oldest)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to count expired audit entries: %w", err)
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}
	return count, oldest, nil
}
