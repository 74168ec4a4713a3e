package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mechconnect/internal/models"
)

// GetSession returns the persisted session, nil when none is stored.
func (s *Store) GetSession(ctx context.Context) (*models.Session, error) {
	query := `SELECT token, mechanic_id, updated_at FROM session WHERE id = 1`

	var session models.Session
	err := s.QueryRowContext(ctx, query).Scan(&session.Token, &session.MechanicID, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *Store) SaveSession(ctx context.Context, session *models.Session) error {
	if session == nil || session.Token == "" {
		return errors.New("session token is required")
	}

	query := `INSERT INTO session (id, token, mechanic_id, updated_at) VALUES (1, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET token = excluded.token, mechanic_id = excluded.mechanic_id, updated_at = excluded.updated_at`
	now := time.Now()
	if _, err := s.ExecContext(ctx, query, session.Token, session.MechanicID, now); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	session.UpdatedAt = now
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
