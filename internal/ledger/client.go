package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/common"
)

// APIVersion is the fixed version marker sent with every ledger request.
const APIVersion = "2025-04-16"

// Client is a thin paginated adapter over the remote ledger. Credentials
// and endpoint base are injected at construction and never read from the
// process environment inside an operation.
type Client struct {
	baseURL    string
	token      string
	locationID string
	httpc      *http.Client
	logger     *zap.Logger
}

// NewClient builds a ledger client from injected configuration.
func NewClient(cfg common.LedgerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.AccessToken,
		locationID: cfg.LocationID,
		httpc:      &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// SearchPayers returns every payer matching the server-side filter,
// following the ledger's continuation token until it is absent. An empty
// filter returns the whole customer base. Any transport or non-2xx
// response aborts the operation; pages already fetched are discarded.
func (c *Client) SearchPayers(ctx context.Context, filter CustomerFilter) ([]Payer, error) {
	var (
		payers []Payer
		cursor string
		pages  int
	)
	for {
		req := customerSearchRequest{Cursor: cursor}
		if !filter.Empty() {
			req.Query = &customerSearchQuery{Filter: filter}
		}

		var resp customerSearchResponse
		if err := c.postJSON(ctx, "/v2/customers/search", req, &resp); err != nil {
			return nil, err
		}
		payers = append(payers, resp.Customers...)
		pages++

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	c.logger.Debug("ledger.search_payers",
		zap.Int("pages", pages),
		zap.Int("payers", len(payers)),
	)
	return payers, nil
}

// ListTransactions returns every transaction recorded for the payer,
// paging until the continuation token is absent.
func (c *Client) ListTransactions(ctx context.Context, payerID string) ([]Transaction, error) {
	var (
		txns   []Transaction
		cursor string
		pages  int
	)
	for {
		req := orderSearchRequest{
			LocationIDs: []string{c.locationID},
			Cursor:      cursor,
			Query: orderSearchQuery{
				Filter: orderSearchFilter{
					CustomerFilter: customerIDFilter{CustomerIDs: []string{payerID}},
				},
			},
		}

		var resp orderSearchResponse
		if err := c.postJSON(ctx, "/v2/orders/search", req, &resp); err != nil {
			return nil, err
		}
		txns = append(txns, resp.Orders...)
		pages++

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	c.logger.Debug("ledger.list_transactions",
		zap.String("payer_id", payerID),
		zap.Int("pages", pages),
		zap.Int("transactions", len(txns)),
	)
	return txns, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("ledger.request_failed",
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return common.UpstreamError(err.Error())
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ledger.body_close_failed", zap.Error(cerr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.UpstreamError(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("ledger.request_rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return common.UpstreamError(upstreamDetail(resp.StatusCode, raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return common.UpstreamError(fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

// upstreamDetail extracts the ledger's own error message when the body
// carries one, falling back to the raw payload.
func upstreamDetail(status int, raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && len(er.Errors) > 0 && er.Errors[0].Detail != "" {
		return fmt.Sprintf("status %d: %s", status, er.Errors[0].Detail)
	}
	return fmt.Sprintf("status %d: %s", status, string(raw))
}
