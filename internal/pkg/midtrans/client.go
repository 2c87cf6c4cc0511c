package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"
)

const (
	SandboxSnapURL    = "https://app.sandbox.midtrans.com"
	ProductionSnapURL = "https://app.midtrans.com"

	defaultTimeout = 15 * time.Second
	maxItemName    = 50
)

// Config holds Midtrans configuration
type Config struct {
	ServerKey       string
	IsProduction    bool
	EnabledPayments []string
	Timeout         time.Duration
	// BaseURL overrides the Snap host derived from IsProduction.
	BaseURL string
}

// Client creates Snap checkout sessions.
type Client struct {
	config  Config
	baseURL string
	http    *http.Client
}

type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int32  `json:"quantity"`
	Name     string `json:"name"`
}

type Callbacks struct {
	Finish string `json:"finish,omitempty"`
}

// SnapRequest is the body of POST /snap/v1/transactions.
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	EnabledPayments    []string           `json:"enabled_payments,omitempty"`
	Callbacks          *Callbacks         `json:"callbacks,omitempty"`
}

// SnapResponse holds the session token and hosted payment page URL.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type errorResponse struct {
	ErrorMessages []string `json:"error_messages"`
}

// NewClient creates new Midtrans client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxSnapURL
		if cfg.IsProduction {
			baseURL = ProductionSnapURL
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		config:  cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// ServerKey returns the key used to sign notifications.
func (c *Client) ServerKey() string { return c.config.ServerKey }

// EnabledPayments returns the configured payment channel list.
func (c *Client) EnabledPayments() []string { return c.config.EnabledPayments }

// CreateTransaction opens a Snap checkout session.
func (c *Client) CreateTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("midtrans request error: client is nil")
	}
	if strings.TrimSpace(c.config.ServerKey) == "" {
		return nil, fmt.Errorf("midtrans config error: server_key is empty")
	}
	if req.TransactionDetails.OrderID == "" {
		return nil, fmt.Errorf("validation error: order_id is empty")
	}
	if req.TransactionDetails.GrossAmount <= 0 {
		return nil, fmt.Errorf("validation error: gross_amount must be > 0")
	}
	if len(req.EnabledPayments) == 0 {
		req.EnabledPayments = c.config.EnabledPayments
	}
	for i := range req.ItemDetails {
		req.ItemDetails[i].Name = truncateName(req.ItemDetails[i].Name)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans request error: %w", err)
	}

	endpoint := c.baseURL + "/snap/v1/transactions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("midtrans request error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+basicAuth(c.config.ServerKey))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("midtrans http error: status=%d body=<failed to read body: %v>", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.ErrorMessages) > 0 {
			return nil, fmt.Errorf("midtrans http error: status=%d messages=%s", resp.StatusCode, strings.Join(apiErr.ErrorMessages, "; "))
		}
		return nil, fmt.Errorf("midtrans http error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out SnapResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("midtrans decode error: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("midtrans http error: empty token in response")
	}
	return &out, nil
}

func basicAuth(serverKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
}

func truncateName(name string) string {
	r := []rune(name)
	if len(r) > maxItemName {
		return string(r[:maxItemName])
	}
	return name
}

func classifyRequestError(ctx context.Context, err error) error {
	if isTimeoutError(ctx, err) {
		return fmt.Errorf("midtrans timeout: %w", err)
	}
	if isNetworkError(err) {
		return fmt.Errorf("midtrans network error: %w", err)
	}
	return fmt.Errorf("midtrans request error: %w", err)
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
