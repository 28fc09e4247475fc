// Package legacy requests bill runs from the legacy billing service, which
// still owns the old (PRESROC) charge scheme.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"billing-backend/internal/billruns"
)

const batchesPath = "/water/1.0/billing/batches"

// ErrRejected is returned when the legacy service refuses to create the batch.
var ErrRejected = errors.New("legacy billing rejected batch")

// Batch is a request for the legacy service to create a bill run.
type Batch struct {
	BatchType           billruns.BatchType
	RegionID            string
	FinancialYearEnding int
	UserEmail           string
	Summer              bool
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client calls the legacy billing API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. When TokenURL is set, requests carry an
// OAuth2 client-credentials bearer token.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("LEGACY_BILLING_URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if strings.TrimSpace(opts.TokenURL) != "" {
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		httpClient = cc.Client(tokenCtx)
		httpClient.Timeout = timeout
	}

	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

type batchRequest struct {
	UserEmail           string `json:"userEmail"`
	RegionID            string `json:"regionId"`
	BatchType           string `json:"batchType"`
	FinancialYearEnding int    `json:"financialYearEnding"`
	IsSummer            bool   `json:"isSummer"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Request asks the legacy service to create the batch. It returns once the
// service has accepted it.
func (c *Client) Request(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batchRequest{
		UserEmail:           batch.UserEmail,
		RegionID:            batch.RegionID,
		BatchType:           string(batch.BatchType),
		FinancialYearEnding: batch.FinancialYearEnding,
		IsSummer:            batch.Summer,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchesPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("legacy billing request timeout: %w", err)
		}
		return fmt.Errorf("legacy billing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			msg = parsed.Message
		} else if parsed.Error != "" {
			msg = parsed.Error
		}
	}
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return fmt.Errorf("legacy billing status %d: %s", resp.StatusCode, msg)
}
