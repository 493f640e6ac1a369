// Package paymaya creates hosted checkout sessions on Maya Checkout.
package paymaya

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ms-ticketcodes/internal/logger"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured   = errors.New("PAYMAYA_PUBLIC_KEY is not configured")
	ErrCheckoutFailed  = errors.New("failed to create PayMaya checkout")
	ErrInvalidResponse = errors.New("invalid PayMaya checkout response")
)

const checkoutPath = "/checkout/v1/checkouts"

// Amount is sent as a bare JSON number with two decimals.
type Amount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

type RedirectURL struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Cancel  string `json:"cancel"`
}

type CheckoutRequest struct {
	TotalAmount            Amount            `json:"totalAmount"`
	RedirectURL            RedirectURL       `json:"redirectUrl"`
	RequestReferenceNumber string            `json:"requestReferenceNumber"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

type Checkout struct {
	CheckoutID  string `json:"checkoutId"`
	RedirectURL string `json:"redirectUrl"`
}

// CheckoutParams is what the order service knows about a checkout.
type CheckoutParams struct {
	OrderID     string
	OrderNumber string
	Amount      decimal.Decimal
	SuccessURL  string
	FailureURL  string
	CancelURL   string
}

type Client struct {
	BaseURL   string
	PublicKey string
	Currency  string
	HTTP      *http.Client
	Logger    *logger.Logger
}

func NewClient(baseURL, publicKey, currency string, timeout time.Duration, log *logger.Logger) *Client {
	if currency == "" {
		currency = "PHP"
	}
	if publicKey == "" {
		log.Warn("PAYMAYA", "PAYMAYA_PUBLIC_KEY is not set. Checkout requests will fail until it is configured.")
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		PublicKey: publicKey,
		Currency:  strings.ToUpper(currency),
		HTTP:      &http.Client{Timeout: timeout},
		Logger:    log,
	}
}

// CreateCheckout opens a hosted checkout for one order and returns the
// checkout id and the page the customer should be sent to.
func (c *Client) CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	if c.PublicKey == "" {
		return nil, ErrNotConfigured
	}

	failure := p.FailureURL
	if failure == "" {
		failure = p.SuccessURL
	}
	cancel := p.CancelURL
	if cancel == "" {
		cancel = failure
	}
	ref := p.OrderNumber
	if ref == "" {
		ref = p.OrderID
	}

	body, err := json.Marshal(CheckoutRequest{
		TotalAmount:            Amount{Value: json.Number(p.Amount.StringFixed(2)), Currency: c.Currency},
		RedirectURL:            RedirectURL{Success: p.SuccessURL, Failure: failure, Cancel: cancel},
		RequestReferenceNumber: ref,
		Metadata: map[string]string{
			"orderId":     p.OrderID,
			"orderNumber": p.OrderNumber,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+checkoutPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.PublicKey+":")))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error("PAYMAYA", fmt.Sprintf("Checkout request for order %s failed: %v", ref, err))
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Logger.Error("PAYMAYA", fmt.Sprintf("Checkout for order %s rejected with %d: %s", ref, resp.StatusCode, string(raw)))
		return nil, fmt.Errorf("%w: status %d", ErrCheckoutFailed, resp.StatusCode)
	}

	var out Checkout
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if out.CheckoutID == "" || out.RedirectURL == "" {
		return nil, ErrInvalidResponse
	}

	c.Logger.LogPayment("CHECKOUT_CREATED", out.CheckoutID, fmt.Sprintf("Checkout created for order %s", ref))
	return &out, nil
}
