// Package getclient talks to the GET campus commerce JSON services.
//
// Every call is a POST of {method, params} to {endpoint}/{service}; the reply
// is an envelope carrying either a response or an exception.
package getclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultEndpoint    = "https://services.get.cbord.com/GETServices/services/json"
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultBackoffStep = 250 * time.Millisecond

	serviceAuthentication = "authentication"
	serviceUser           = "user"
	serviceCommerce       = "commerce"

	maxReturnMostRecent = 1000
	maxResponseBytes    = 4 << 20
)

type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxRetries  int
	BackoffStep time.Duration
}

// Client is stateless and safe for concurrent use.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	maxRetries  int
	backoffStep time.Duration
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultBackoffStep
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		backoffStep: cfg.BackoffStep,
		logger:      logger,
	}
}

// Authenticate exchanges device credentials for a session id.
func (c *Client) Authenticate(ctx context.Context, deviceID, pin string) (string, error) {
	var sessionID string
	err := c.callWithRetry(ctx, serviceAuthentication, "authenticatePIN", map[string]any{
		"pin":      pin,
		"deviceId": deviceID,
		"systemCredentials": systemCredentials{
			Password: "NOTUSED",
			UserName: "get_mobile",
			Domain:   "",
		},
	}, &sessionID)
	if err != nil {
		return "", err
	}
	if sessionID == "" {
		apiErr := newAPIError(serviceAuthentication, "authenticatePIN", "returned an empty session")
		apiErr.Err = ErrMissingResponse
		return "", apiErr
	}
	return sessionID, nil
}

// CreateDeviceCredential registers a device id and PIN against a validated session.
func (c *Client) CreateDeviceCredential(ctx context.Context, sessionID, deviceID, pin string) (bool, error) {
	var created bool
	err := c.callWithRetry(ctx, serviceUser, "createPIN", map[string]any{
		"sessionId": sessionID,
		"deviceId":  deviceID,
		"PIN":       pin,
	}, &created)
	return created, err
}

// RevokeDeviceCredential removes a device registration.
func (c *Client) RevokeDeviceCredential(ctx context.Context, sessionID, deviceID string) (bool, error) {
	var revoked bool
	err := c.callWithRetry(ctx, serviceUser, "deletePIN", map[string]any{
		"sessionId": sessionID,
		"deviceId":  deviceID,
	}, &revoked)
	return revoked, err
}

// FetchBarcodePayload returns the patron's current scannable payload.
func (c *Client) FetchBarcodePayload(ctx context.Context, sessionID string) (string, error) {
	var payload string
	err := c.callWithRetry(ctx, serviceAuthentication, "retrievePatronBarcodePayload", map[string]any{
		"sessionId": sessionID,
	}, &payload)
	return payload, err
}

// FetchTransactionsSince lists ledger entries on every account since the given instant.
func (c *Client) FetchTransactionsSince(ctx context.Context, sessionID string, since time.Time) ([]Transaction, error) {
	var resp transactionsResponse
	err := c.callWithRetry(ctx, serviceCommerce, "retrieveTransactionHistoryWithinDateRange", map[string]any{
		"sessionId":         sessionID,
		"paymentSystemType": 0,
		"queryCriteria": queryCriteria{
			MaxReturnMostRecent: maxReturnMostRecent,
			OldestDate:          since.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		return []Transaction{}, nil
	}
	return resp.Transactions, nil
}

func (c *Client) FetchAccounts(ctx context.Context, sessionID string) ([]Account, error) {
	var resp accountsResponse
	err := c.callWithRetry(ctx, serviceCommerce, "retrieveAccounts", map[string]any{
		"sessionId": sessionID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Accounts == nil {
		return []Account{}, nil
	}
	return resp.Accounts, nil
}

// callWithRetry retries transient failures up to maxRetries times with a
// linear backoff. Fatal failures and caller cancellation stop immediately.
func (c *Client) callWithRetry(ctx context.Context, service, method string, params, out any) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := c.call(ctx, service, method, params, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: c.backoffStep}, uint64(c.maxRetries)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("transient GET API error, retrying",
			slog.String("service", service),
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
	}

	return backoff.RetryNotify(operation, policy, notify)
}

// call performs one RPC and decodes the response payload into out.
func (c *Client) call(ctx context.Context, service, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s.%s request: %w", service, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+service, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s.%s request: %w", service, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := newAPIError(service, method, "request failed: "+err.Error())
		apiErr.Err = err
		return apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := newAPIError(service, method, "failed reading response: "+err.Error())
		apiErr.Err = err
		return apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(service, method, fmt.Sprintf("failed (%d)", resp.StatusCode))
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		apiErr := newAPIError(service, method, "returned an invalid envelope")
		apiErr.StatusCode = resp.StatusCode
		apiErr.Err = err
		return apiErr
	}

	if present(env.Exception) {
		apiErr := newAPIError(service, method, "exception: "+parseException(env.Exception))
		apiErr.StatusCode = resp.StatusCode
		apiErr.Exception = env.Exception
		return apiErr
	}

	// Only an absent response is missing; an explicit null decodes to the
	// zero value of out.
	if len(env.Response) == 0 {
		apiErr := newAPIError(service, method, ErrMissingResponse.Error())
		apiErr.StatusCode = resp.StatusCode
		apiErr.Err = ErrMissingResponse
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		apiErr := newAPIError(service, method, "returned an unexpected response shape")
		apiErr.StatusCode = resp.StatusCode
		apiErr.Err = err
		return apiErr
	}

	return nil
}

// AsAPIError returns the structured error behind err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
