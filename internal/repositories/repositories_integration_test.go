//go:build integration

package repositories_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/models"
	"github.com/pointshare/redeem/internal/repositories"
	"github.com/pointshare/redeem/internal/services"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// setupTestDatabase starts a PostgreSQL container and applies the embedded
// migrations
func setupTestDatabase(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("redeem"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := &database.DB{Pool: pool}
	require.NoError(t, db.Migrate(ctx))
	return db
}

func seedUser(t *testing.T, db *database.DB, email string, mode models.FulfillmentMode) *models.User {
	t.Helper()
	user, err := repositories.NewUserRepository(db).Create(context.Background(), &models.User{
		Email:                  email,
		Name:                   email,
		DefaultFulfillmentMode: mode,
	})
	require.NoError(t, err)
	return user
}

func newAcceptance(db *database.DB) *services.AcceptanceService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewAcceptanceService(
		repositories.NewUserRepository(db),
		repositories.NewRequestRepository(db),
		repositories.NewPointsRepository(db),
		repositories.NewUnitOfWork(db),
		events.NoopPublisher{},
		pkglogger.NewAuditLogger(logger),
		15*time.Minute,
		logger,
	)
}

func TestIntegration_TransferAcceptMovesPointsAtomically(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	requester := seedUser(t, db, "requester@campus.test", models.FulfillmentCodeOnly)
	donor := seedUser(t, db, "donor@campus.test", models.FulfillmentTransferOnly)

	uow := repositories.NewUnitOfWork(db)
	require.NoError(t, uow.Commit(ctx, models.AdjustPoints{UserID: donor.ID, Delta: 20}))

	requests := repositories.NewRequestRepository(db)
	req, err := requests.Create(ctx, &models.Request{RequesterID: requester.ID, PointsRequested: 5, Location: "North Dining Hall"})
	require.NoError(t, err)

	result, err := newAcceptance(db).Accept(ctx, req.ID, donor.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentTransferOnly, result.Mode)
	assert.Equal(t, 5, result.TransferredPoints)
	require.NotNil(t, result.DonorBalanceBefore)
	assert.Equal(t, 20, *result.DonorBalanceBefore)

	points := repositories.NewPointsRepository(db)
	donorPoints, err := points.GetOrCreate(ctx, donor.ID)
	require.NoError(t, err)
	requesterPoints, err := points.GetOrCreate(ctx, requester.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, donorPoints.Balance)
	assert.Equal(t, 5, requesterPoints.Balance)

	stored, err := requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, stored.Status)
	assert.Nil(t, stored.CodeIssuedAt)

	notifications, err := repositories.NewNotificationRepository(db).ListByUser(ctx, requester.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "accepted your request for 5 points")
}

func TestIntegration_OverdraftRollsBackEverything(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	requester := seedUser(t, db, "requester@campus.test", models.FulfillmentCodeOnly)
	donor := seedUser(t, db, "donor@campus.test", models.FulfillmentTransferOnly)

	requests := repositories.NewRequestRepository(db)
	req, err := requests.Create(ctx, &models.Request{RequesterID: requester.ID, PointsRequested: 5, Location: "East"})
	require.NoError(t, err)

	err = repositories.NewUnitOfWork(db).Commit(ctx,
		models.AcceptRequest{RequestID: req.ID, DonorID: donor.ID, Mode: models.FulfillmentTransferOnly},
		models.AdjustPoints{UserID: donor.ID, Delta: -5},
		models.AdjustPoints{UserID: requester.ID, Delta: 5},
	)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	stored, err := requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)
}

func TestIntegration_ConcurrentAcceptsOneWins(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	requester := seedUser(t, db, "requester@campus.test", models.FulfillmentCodeOnly)
	donorA := seedUser(t, db, "a@campus.test", models.FulfillmentTransferOnly)
	donorB := seedUser(t, db, "b@campus.test", models.FulfillmentTransferOnly)

	uow := repositories.NewUnitOfWork(db)
	require.NoError(t, uow.Commit(ctx,
		models.AdjustPoints{UserID: donorA.ID, Delta: 20},
		models.AdjustPoints{UserID: donorB.ID, Delta: 20},
	))

	req, err := repositories.NewRequestRepository(db).Create(ctx, &models.Request{RequesterID: requester.ID, PointsRequested: 5, Location: "West"})
	require.NoError(t, err)

	acceptance := newAcceptance(db)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, donor := range []*models.User{donorA, donorB} {
		wg.Add(1)
		go func(i int, donorID string) {
			defer wg.Done()
			_, errs[i] = acceptance.Accept(ctx, req.ID, donorID, nil)
		}(i, donor.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	requesterPoints, err := repositories.NewPointsRepository(db).GetOrCreate(ctx, requester.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, requesterPoints.Balance)
}

func TestIntegration_CodeWindowAndCompletion(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	requester := seedUser(t, db, "requester@campus.test", models.FulfillmentCodeOnly)
	donor := seedUser(t, db, "donor@campus.test", models.FulfillmentCodeOnly)

	requests := repositories.NewRequestRepository(db)
	req, err := requests.Create(ctx, &models.Request{RequesterID: requester.ID, PointsRequested: 3, Location: "South"})
	require.NoError(t, err)

	// Arming a pending request is a conflict
	_, err = requests.ArmCodeWindow(ctx, req.ID, nil, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrConflict)

	issued := time.Now().UTC().Truncate(time.Microsecond)
	uow := repositories.NewUnitOfWork(db)
	require.NoError(t, uow.Commit(ctx, models.AcceptRequest{
		RequestID: req.ID, DonorID: donor.ID, Mode: models.FulfillmentCodeOnly,
		CodeIssuedAt: &issued, CodeExpiresAt: ptrTime(issued.Add(15 * time.Minute)),
	}))

	extended := issued.Add(20 * time.Minute)
	armed, err := requests.ArmCodeWindow(ctx, req.ID, nil, extended)
	require.NoError(t, err)
	require.NotNil(t, armed.CodeIssuedAt)
	assert.True(t, issued.Equal(*armed.CodeIssuedAt))
	assert.True(t, extended.Equal(*armed.CodeExpiresAt))

	completedAt := issued.Add(2 * time.Minute)
	require.NoError(t, uow.Commit(ctx, models.CompleteRequest{
		RequestID: req.ID, CompletedAt: completedAt, Trigger: models.CompletionFirstGetTransaction,
	}))

	// Completion happens once
	err = uow.Commit(ctx, models.CompleteRequest{RequestID: req.ID, CompletedAt: time.Now(), Trigger: models.CompletionFirstGetTransaction})
	assert.ErrorIs(t, err, models.ErrConflict)

	stored, err := requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, stored.Status)
	assert.True(t, completedAt.Equal(*stored.CompletedAt))
	assert.True(t, completedAt.Equal(*stored.CodeExpiresAt))
}

func TestIntegration_CredentialLifecycle(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	user := seedUser(t, db, "donor@campus.test", models.FulfillmentCodeOnly)
	creds := repositories.NewCredentialRepository(db)

	_, err := creds.GetByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	validated := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, creds.Upsert(ctx, &models.Credential{
		UserID: user.ID, EncryptedDeviceID: "v1:a:b", EncryptedPIN: "v1:c:d", LastValidatedAt: validated,
	}))

	profile, err := repositories.NewUserRepository(db).GetDonorProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, profile.Linked)

	later := validated.Add(time.Hour)
	require.NoError(t, creds.TouchValidated(ctx, user.ID, later))
	stored, err := creds.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(stored.LastValidatedAt))

	require.NoError(t, creds.Delete(ctx, user.ID))
	_, err = creds.GetByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIntegration_NotificationsReadAndPrune(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	user := seedUser(t, db, "requester@campus.test", models.FulfillmentCodeOnly)
	other := seedUser(t, db, "other@campus.test", models.FulfillmentCodeOnly)
	require.NoError(t, repositories.NewUnitOfWork(db).Commit(ctx,
		models.CreateNotification{UserID: user.ID, Type: "request_accepted", Message: "hello"},
	))

	notifications := repositories.NewNotificationRepository(db)
	list, err := notifications.ListByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = notifications.SetRead(ctx, list[0].ID, other.ID, true)
	assert.ErrorIs(t, err, models.ErrNotFound)

	updated, err := notifications.SetRead(ctx, list[0].ID, user.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Read)

	deleted, err := notifications.DeleteReadBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
