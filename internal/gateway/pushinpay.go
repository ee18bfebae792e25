package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/vitrine/internal/utils"
)

const (
	DefaultPushinPayURL = "https://api.pushinpay.com.br/api"
	defaultTimeout      = 15 * time.Second
)

// MinimumAmount is the smallest charge PushinPay accepts.
var MinimumAmount = decimal.RequireFromString("0.50")

// PushinPayConfig holds credentials for the PushinPay API.
type PushinPayConfig struct {
	BaseURL    string
	Token      string
	WebhookURL string
	Timeout    time.Duration
}

// PushinPay is a Gateway backed by the PushinPay Pix API.
type PushinPay struct {
	baseURL    string
	token      string
	webhookURL string
	httpClient *http.Client
}

func NewPushinPay(cfg PushinPayConfig) *PushinPay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultPushinPayURL
	}
	return &PushinPay{
		baseURL:    base,
		token:      cfg.Token,
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type cashInRequest struct {
	Value      int64  `json:"value"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

type transactionResponse struct {
	ID           string `json:"id"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
}

type errorResponse struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// CreateCharge issues a new Pix cash-in for amount (in reais).
func (p *PushinPay) CreateCharge(ctx context.Context, amount decimal.Decimal) (*Charge, error) {
	if amount.LessThan(MinimumAmount) {
		return nil, &Error{
			Op:      "create charge",
			Message: fmt.Sprintf("O valor mínimo é R$ %s", strings.Replace(MinimumAmount.StringFixed(2), ".", ",", 1)),
		}
	}

	var resp transactionResponse
	body := cashInRequest{Value: utils.ToCents(amount), WebhookURL: p.webhookURL}
	if err := p.do(ctx, "create charge", http.MethodPost, "pix/cashIn", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &Error{Op: "create charge", Err: errors.New("response has no transaction id")}
	}

	return &Charge{
		ID:           resp.ID,
		Code:         resp.QRCode,
		EncodedImage: resp.QRCodeBase64,
		Amount:       amount,
	}, nil
}

// GetChargeStatus looks up the current status of a charge.
func (p *PushinPay) GetChargeStatus(ctx context.Context, id string) (Status, error) {
	if strings.TrimSpace(id) == "" {
		return "", &Error{Op: "charge status", Err: errors.New("empty charge id")}
	}

	var resp transactionResponse
	if err := p.do(ctx, "charge status", http.MethodGet, "transactions/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", err
	}
	status := ParseStatus(resp.Status)
	if status == "" {
		return "", &Error{Op: "charge status", Err: errors.New("response has no status")}
	}
	return status, nil
}

func (p *PushinPay) do(ctx context.Context, op, method, path string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("marshal: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+"/"+strings.TrimLeft(path, "/"), bodyReader)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: providerMessage(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}

func providerMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(er.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(er.Error); msg != "" {
		return msg
	}
	for _, msgs := range er.Errors {
		if len(msgs) > 0 {
			return strings.TrimSpace(msgs[0])
		}
	}
	return ""
}
