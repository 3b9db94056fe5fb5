package services

import (
	"context"
	"time"

	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
)

// UserRepository defines the interface for user profile access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetDonorProfile(ctx context.Context, id string) (*models.DonorProfile, error)
	UpdateDefaultMode(ctx context.Context, id string, mode models.FulfillmentMode) (*models.User, error)
}

// CredentialRepository defines the interface for encrypted GET credentials
type CredentialRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Credential, error)
	Upsert(ctx context.Context, c *models.Credential) error
	TouchValidated(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) error
}

// PointsRepository reads balances; writes go through UnitOfWork
type PointsRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Points, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *models.Request) (*models.Request, error)
	GetByID(ctx context.Context, id string) (*models.Request, error)
	ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error)
	ArmCodeWindow(ctx context.Context, id string, issuedAt *time.Time, expiresAt time.Time) (*models.Request, error)
}

type NotificationRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	SetRead(ctx context.Context, id, userID string, read bool) (*models.Notification, error)
}

// UnitOfWork commits staged operations all-or-nothing
type UnitOfWork interface {
	Commit(ctx context.Context, ops ...models.Operation) error
}

// CommerceClient is the GET services client
type CommerceClient interface {
	Authenticate(ctx context.Context, deviceID, pin string) (string, error)
	CreateDeviceCredential(ctx context.Context, sessionID, deviceID, pin string) (bool, error)
	RevokeDeviceCredential(ctx context.Context, sessionID, deviceID string) (bool, error)
	FetchBarcodePayload(ctx context.Context, sessionID string) (string, error)
	FetchTransactionsSince(ctx context.Context, sessionID string, since time.Time) ([]getclient.Transaction, error)
	FetchAccounts(ctx context.Context, sessionID string) ([]getclient.Account, error)
}

// SecretCipher protects device credentials at rest
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}
