package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var mode string

	err := scanner.Scan(&user.ID, &user.Email, &user.Name, &mode, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.DefaultFulfillmentMode = models.ResolveFulfillmentMode(mode, models.DefaultFulfillmentMode)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, default_fulfillment_mode, created_at, updated_at
		FROM users WHERE id = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a user profile. Accounts are provisioned by the identity
// provider; this is used when a new token subject is first seen and in tests.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if !user.DefaultFulfillmentMode.Valid() {
		user.DefaultFulfillmentMode = models.DefaultFulfillmentMode
	}

	now := time.Now()
	query := `
		INSERT INTO users (id, email, name, default_fulfillment_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, email, name, default_fulfillment_mode, created_at, updated_at
	`

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Name, string(user.DefaultFulfillmentMode), now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) UpdateDefaultMode(ctx context.Context, id string, mode models.FulfillmentMode) (*models.User, error) {
	query := `
		UPDATE users SET default_fulfillment_mode = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, name, default_fulfillment_mode, created_at, updated_at
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id, string(mode)))
}

// GetDonorProfile loads a user together with whether they have linked GET
// credentials.
func (r *UserRepository) GetDonorProfile(ctx context.Context, id string) (*models.DonorProfile, error) {
	query := `
		SELECT u.id, u.email, u.name, u.default_fulfillment_mode, u.created_at, u.updated_at,
		       c.user_id IS NOT NULL
		FROM users u
		LEFT JOIN get_credentials c ON c.user_id = u.id
		WHERE u.id = $1
	`

	var user models.User
	var mode string
	var linked bool

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &mode, &user.CreatedAt, &user.UpdatedAt, &linked,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.DefaultFulfillmentMode = models.ResolveFulfillmentMode(mode, models.DefaultFulfillmentMode)
	return &models.DonorProfile{User: &user, Linked: linked}, nil
}
