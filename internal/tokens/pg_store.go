package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wanderly/pushgate/internal/logger"
)

// PGStore persists device tokens in PostgreSQL.
type PGStore struct {
	logger *logger.Logger
	db     *sql.DB
}

// NewPGStore creates a new PostgreSQL-backed token store.
func NewPGStore(logger *logger.Logger, db *sql.DB) *PGStore {
	logger.WithComponent("token-store").Info("postgres token store initialized")

	return &PGStore{
		logger: logger,
		db:     db,
	}
}

// GetTokens retrieves all device tokens registered for a user.
func (s *PGStore) GetTokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	log := s.logger.WithComponent("token-store")

	query := `
		SELECT token, platform
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query device tokens",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		var t DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read device tokens: %w", err)
	}

	log.Debug("device tokens loaded",
		slog.String("user_id", userID),
		slog.Int("count", len(tokens)))

	return tokens, nil
}

// Register upserts a device token for a user. A token that moves between
// accounts (app reinstall, login switch) is reassigned to the new user.
func (s *PGStore) Register(ctx context.Context, userID string, token DeviceToken) error {
	log := s.logger.WithComponent("token-store")

	platform := token.Platform
	if platform == "" {
		platform = PlatformIOS
	}

	query := `
		INSERT INTO device_tokens (id, user_id, token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (token)
		DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, uuid.New().String(), userID, token.Token, platform, time.Now())
	if err != nil {
		log.Error("failed to register device token",
			slog.String("user_id", userID),
			slog.String("platform", platform),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to register device token: %w", err)
	}

	log.Debug("device token registered",
		slog.String("user_id", userID),
		slog.String("platform", platform))

	return nil
}

// Unregister removes a device token for a user.
func (s *PGStore) Unregister(ctx context.Context, userID, token string) error {
	log := s.logger.WithComponent("token-store")

	query := `
		DELETE FROM device_tokens
		WHERE user_id = $1 AND token = $2
	`

	_, err := s.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		log.Error("failed to unregister device token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to unregister device token: %w", err)
	}

	log.Debug("device token unregistered", slog.String("user_id", userID))

	return nil
}
