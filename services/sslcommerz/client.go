// Package sslcommerz implements the SSLCommerz hosted-checkout gateway:
// session initiation, server-side payment validation, and webhook
// signature verification.
package sslcommerz

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	sandboxInitURL     = "https://sandbox.sslcommerz.com/gwprocess/v4/api.php"
	sandboxValidateURL = "https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php"
	liveInitURL        = "https://securepay.sslcommerz.com/gwprocess/v4/api.php"
	liveValidateURL    = "https://securepay.sslcommerz.com/validator/api/validationserverAPI.php"

	requestTimeout = 15 * time.Second
)

var (
	ErrSessionFailed     = errors.New("gateway session could not be created")
	ErrValidationFailed  = errors.New("gateway payment validation failed")
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrAmountMismatch    = errors.New("paid amount does not match expected amount")
	ErrMissingCredential = errors.New("gateway store credentials are not configured")
)

// Gateway is the payment gateway surface the payment service depends on.
// The concrete client talks to SSLCommerz; tests substitute a fake.
type Gateway interface {
	InitiateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error)
	ValidatePayment(ctx context.Context, valID string, expectedAmount decimal.Decimal) (*ValidationResponse, error)
	VerifyWebhookSignature(form map[string]string) bool
	StoreID() string
}

// Client is the HTTP client for the SSLCommerz v4 API.
type Client struct {
	storeID     string
	storePasswd string
	sandbox     bool
	httpClient  *http.Client
}

// NewClient creates a gateway client. Sandbox mode switches both the
// session and validation endpoints.
func NewClient(storeID, storePasswd string, sandbox bool) *Client {
	return &Client{
		storeID:     storeID,
		storePasswd: storePasswd,
		sandbox:     sandbox,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// StoreID returns the configured store ID, used to authenticate gateway
// callbacks.
func (c *Client) StoreID() string {
	return c.storeID
}

func (c *Client) initURL() string {
	if c.sandbox {
		return sandboxInitURL
	}
	return liveInitURL
}

func (c *Client) validateURL() string {
	if c.sandbox {
		return sandboxValidateURL
	}
	return liveValidateURL
}

// SessionRequest carries everything the hosted checkout page needs.
type SessionRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string

	SuccessURL string
	FailURL    string
	CancelURL  string
	IPNURL     string

	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	CustomerCity    string
	CustomerCountry string
	ProductName     string

	// Passthrough values echoed back on the webhook.
	OrderID           string
	UserID            string
	PaymentKind       string // "installment" or "full"
	OrderNumber       string
	InstallmentNumber string
	InstallmentAmount string
}

// SessionResponse is the subset of the session API reply we use.
type SessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitiateSession creates a hosted-checkout session and returns the page
// URL the browser should be redirected to.
func (c *Client) InitiateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	if c.storeID == "" || c.storePasswd == "" {
		return nil, ErrMissingCredential
	}

	form := url.Values{}
	form.Set("store_id", c.storeID)
	form.Set("store_passwd", c.storePasswd)
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("ipn_url", req.IPNURL)
	form.Set("shipping_method", "NO")
	form.Set("product_name", req.ProductName)
	form.Set("product_category", "Education")
	form.Set("product_profile", "digital-goods")
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_add1", req.CustomerAddress)
	form.Set("cus_city", req.CustomerCity)
	form.Set("cus_country", req.CustomerCountry)
	form.Set("cus_phone", req.CustomerPhone)
	form.Set("value_a", req.OrderID)
	form.Set("value_b", req.UserID)
	form.Set("value_c", req.PaymentKind)
	form.Set("value_d", req.OrderNumber)
	form.Set("value_e", req.InstallmentNumber)
	form.Set("value_f", req.InstallmentAmount)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.initURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway session request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var session SessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("gateway session response: %w", err)
	}

	if session.Status != "SUCCESS" {
		if session.FailedReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrSessionFailed, session.FailedReason)
		}
		return nil, ErrSessionFailed
	}

	return &session, nil
}

// ValidationResponse is the subset of the validator API reply we use.
type ValidationResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"tran_id"`
	ValID         string `json:"val_id"`
	Amount        string `json:"amount"`
	CurrencyType  string `json:"currency_type"`
	CardType      string `json:"card_type"`
	BankTranID    string `json:"bank_tran_id"`
	TranDate      string `json:"tran_date"`
	RiskLevel     string `json:"risk_level"`
}

// Verified reports whether the gateway accepted the payment.
func (v *ValidationResponse) Verified() bool {
	return v.Status == "VALID" || v.Status == "VALIDATED"
}

// ValidatePayment calls the validator API with the val_id from a callback
// and cross-checks the paid amount. This is an independent server-to-server
// check; callback payloads alone are never trusted.
func (c *Client) ValidatePayment(ctx context.Context, valID string, expectedAmount decimal.Decimal) (*ValidationResponse, error) {
	if c.storeID == "" || c.storePasswd == "" {
		return nil, ErrMissingCredential
	}

	query := url.Values{}
	query.Set("val_id", valID)
	query.Set("store_id", c.storeID)
	query.Set("store_passwd", c.storePasswd)
	query.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.validateURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway validation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var validation ValidationResponse
	if err := json.Unmarshal(body, &validation); err != nil {
		return nil, fmt.Errorf("gateway validation response: %w", err)
	}

	if !validation.Verified() {
		return &validation, ErrValidationFailed
	}

	paid, err := decimal.NewFromString(validation.Amount)
	if err != nil {
		return &validation, fmt.Errorf("gateway validation amount %q: %w", validation.Amount, err)
	}
	if paid.LessThan(expectedAmount) {
		return &validation, ErrAmountMismatch
	}

	return &validation, nil
}

// VerifyWebhookSignature checks the MD5 signature SSLCommerz attaches to
// IPN callbacks: the fields named in verify_key, sorted, joined with the
// store password, must hash to verify_sign.
func (c *Client) VerifyWebhookSignature(form map[string]string) bool {
	verifySign := form["verify_sign"]
	verifyKey := form["verify_key"]
	if verifySign == "" || verifyKey == "" {
		return false
	}

	keys := strings.Split(verifyKey, ",")
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		pairs = append(pairs, k+"="+form[k])
	}
	hashedPasswd := md5.Sum([]byte(c.storePasswd))
	pairs = append(pairs, "store_passwd="+hex.EncodeToString(hashedPasswd[:]))

	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:]) == strings.ToLower(verifySign)
}
