package client

import (
	"context"
	"net/http"
	"time"

	"github.com/matchnote/matchnote/pkg/models"
)

// SyncResult is the outcome of one kind in a sync pass.
type SyncResult struct {
	Kind          models.Kind `json:"kind"`
	Pushed        int         `json:"pushed"`
	Pulled        int         `json:"pulled"`
	PushedUpdates int         `json:"pushed_updates"`
	PulledUpdates int         `json:"pulled_updates"`
	Unchanged     int         `json:"unchanged"`
	Failed        int         `json:"failed"`
	Error         string      `json:"error,omitempty"`
}

type SyncReport struct {
	Results  []SyncResult `json:"results"`
	Changed  int          `json:"changed"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// Sync asks the server to reconcile now. An offline or signed-out server
// answers with an *APIError of status 503.
func (c *Client) Sync(ctx context.Context) (*SyncReport, error) {
	var report SyncReport
	if err := c.do(ctx, http.MethodPost, "/api/sync", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type bindResponse struct {
	AccountID string `json:"account_id"`
	Records   int64  `json:"records"`
}

// Register binds the server's records to accountID and returns how many were rewritten.
func (c *Client) Register(ctx context.Context, accountID string) (int64, error) {
	return c.bind(ctx, "/api/account/register", accountID)
}

// Login is Register followed by a sync on the server.
func (c *Client) Login(ctx context.Context, accountID string) (int64, error) {
	return c.bind(ctx, "/api/account/login", accountID)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/account/logout", nil, nil)
}

func (c *Client) bind(ctx context.Context, path, accountID string) (int64, error) {
	var resp bindResponse
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"account_id": accountID}, &resp); err != nil {
		return 0, err
	}
	return resp.Records, nil
}
