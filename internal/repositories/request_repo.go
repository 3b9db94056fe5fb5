package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

const requestColumns = `
	id, requester_id, donor_id, points_requested, location, message, status, fulfillment_mode,
	code_issued_at, code_expires_at, completed_at, completion_trigger, created_at, updated_at
`

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{pool: db.Pool}
}

func scanRequestRow(scanner rowScanner) (*models.Request, error) {
	var req models.Request
	var status string
	var mode *string

	err := scanner.Scan(
		&req.ID, &req.RequesterID, &req.DonorID, &req.PointsRequested, &req.Location, &req.Message,
		&status, &mode,
		&req.CodeIssuedAt, &req.CodeExpiresAt, &req.CompletedAt, &req.CompletionTrigger,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	req.Status = models.RequestStatus(status)
	if mode != nil {
		m := models.FulfillmentMode(*mode)
		req.FulfillmentMode = &m
	}
	return &req, nil
}

func scanRequestRows(rows pgx.Rows) ([]*models.Request, error) {
	defer rows.Close()

	requests := make([]*models.Request, 0)
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return requests, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	req.ID = uuid.New().String()
	req.Status = models.RequestPending

	query := `
		INSERT INTO requests (id, requester_id, points_requested, location, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + requestColumns

	created, err := scanRequestRow(r.pool.QueryRow(ctx, query,
		req.ID, req.RequesterID, req.PointsRequested, req.Location, req.Message, string(req.Status),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return created, nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	return scanRequestRow(r.pool.QueryRow(ctx, query, id))
}

// ListForUser returns requests relative to userID: the ones they asked for,
// the ones they donated to, or pending requests from everyone else.
func (r *RequestRepository) ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error) {
	var where string
	switch role {
	case models.RoleRequester:
		where = `requester_id = $1`
	case models.RoleDonor:
		where = `donor_id = $1`
	case models.RoleOpen:
		where = `status = 'pending' AND requester_id <> $1`
	default:
		return nil, models.ErrBadRequest
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE ` + where + ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	return scanRequestRows(rows)
}

// ArmCodeWindow sets the code window of an accepted request. A nil issuedAt
// keeps the stored value. Returns ErrConflict if the request is no longer
// accepted.
func (r *RequestRepository) ArmCodeWindow(ctx context.Context, id string, issuedAt *time.Time, expiresAt time.Time) (*models.Request, error) {
	query := `
		UPDATE requests
		SET code_issued_at = COALESCE($2::timestamptz, code_issued_at),
		    code_expires_at = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + requestColumns

	req, err := scanRequestRow(r.pool.QueryRow(ctx, query, id, issuedAt, expiresAt))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrConflict
		}
		return nil, err
	}
	return req, nil
}
