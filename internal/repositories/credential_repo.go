package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

// CredentialRepository stores encrypted GET device credentials. It never
// sees plaintext.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{pool: db.Pool}
}

func (r *CredentialRepository) GetByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	query := `
		SELECT user_id, encrypted_device_id, encrypted_pin, last_validated_at, created_at, updated_at
		FROM get_credentials WHERE user_id = $1
	`

	var c models.Credential
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&c.UserID, &c.EncryptedDeviceID, &c.EncryptedPIN, &c.LastValidatedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

// Upsert stores credentials for a user, replacing any previous link.
func (r *CredentialRepository) Upsert(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO get_credentials (user_id, encrypted_device_id, encrypted_pin, last_validated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			encrypted_device_id = EXCLUDED.encrypted_device_id,
			encrypted_pin = EXCLUDED.encrypted_pin,
			last_validated_at = EXCLUDED.last_validated_at,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, c.UserID, c.EncryptedDeviceID, c.EncryptedPIN, c.LastValidatedAt)
	return database.MapPostgresError(err)
}

// TouchValidated records a successful live authentication.
func (r *CredentialRepository) TouchValidated(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE get_credentials SET last_validated_at = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM get_credentials WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}
