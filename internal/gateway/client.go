// Package gateway wraps the external KHQR payment rail. Two calls exist:
// creating a QR payment and checking whether a hash has settled.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/qr"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

const paidResponseCode = 0

// CreateResult is what the engine needs from a successful QR creation.
type CreateResult struct {
	Artifact      qr.Artifact
	PaymentHash   string
	TransactionID string
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type createResponse struct {
	QR            string `json:"qr"`
	QRData        string `json:"qrdata"`
	MD5           string `json:"md5"`
	TransactionID string `json:"transactionId"`
}

// CreatePayment asks the gateway for a payment QR. The `qr` field, when
// present, carries a base64 PNG; `qrdata` carries the raw KHQR payload
// the caller renders locally. A response without a payment hash or
// without any artifact is a protocol error.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, s settings.Settings) (*CreateResult, error) {
	q := url.Values{}
	q.Set("amount", amount.String())
	q.Set("merchantRef", s.MerchantID)
	q.Set("merchantName", s.MerchantName)

	var resp createResponse
	if err := c.getJSON(ctx, "/create", q, s.BearerToken, &resp); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	var art qr.Artifact
	switch {
	case resp.QR != "":
		if png, err := base64.StdEncoding.DecodeString(resp.QR); err == nil {
			art = qr.Rendered(png)
		} else {
			// Some provider builds put the raw payload in `qr`.
			art = qr.Payload(resp.QR)
		}
	case resp.QRData != "":
		art = qr.Payload(resp.QRData)
	}

	if art.Empty() || resp.MD5 == "" {
		return nil, fmt.Errorf("create payment: response missing qr artifact or payment hash")
	}
	return &CreateResult{
		Artifact:      art,
		PaymentHash:   resp.MD5,
		TransactionID: resp.TransactionID,
	}, nil
}

type checkResponse struct {
	ResponseCode int `json:"responseCode"`
}

// CheckStatus reports whether the payment behind the hash has settled.
// Only responseCode 0 means paid; any other parsable code is a definite
// "not yet". Transport and protocol failures return an error so the
// caller can skip the tick instead of treating it as unpaid.
func (c *Client) CheckStatus(ctx context.Context, paymentHash string, s settings.Settings) (bool, error) {
	q := url.Values{}
	q.Set("md5", paymentHash)
	q.Set("merchantRef", s.MerchantID)

	var resp checkResponse
	if err := c.getJSON(ctx, "/check", q, s.BearerToken, &resp); err != nil {
		return false, fmt.Errorf("check status: %w", err)
	}
	return resp.ResponseCode == paidResponseCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", res.StatusCode, body)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
