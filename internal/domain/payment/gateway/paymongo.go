package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"storefront/internal/pkg/config"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

// methodTypes 本地支付方式到网关 payment_method_types 的映射
var methodTypes = map[string][]string{
	"gcash":   {"gcash"},
	"paymaya": {"paymaya"},
	"card":    {"card"},
}

// PayMongoGateway PayMongo checkout sessions API 客户端
type PayMongoGateway struct {
	baseURL    string
	authHeader string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

func NewPayMongoGateway() *PayMongoGateway {
	cfg := config.GlobalConfig.Gateway
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Basic auth：secret key 作用户名，密码为空
	token := base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey + ":"))

	return &PayMongoGateway{
		baseURL:    cfg.BaseURL,
		authHeader: "Basic " + token,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type checkoutSessionPayload struct {
	Data struct {
		Attributes struct {
			LineItems          []lineItemPayload `json:"line_items"`
			PaymentMethodTypes []string          `json:"payment_method_types"`
			SuccessURL         string            `json:"success_url"`
			CancelURL          string            `json:"cancel_url"`
			Description        string            `json:"description"`
			ReferenceNumber    string            `json:"reference_number"`
		} `json:"attributes"`
	} `json:"data"`
}

type lineItemPayload struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // centavo
	Quantity int    `json:"quantity"`
	Currency string `json:"currency"`
}

type checkoutSessionResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL   string `json:"checkout_url"`
			PaymentIntent struct {
				Attributes struct {
					Status string `json:"status"`
				} `json:"attributes"`
			} `json:"payment_intent"`
			Payments []struct {
				Attributes struct {
					Status string `json:"status"`
					PaidAt int64  `json:"paid_at"`
				} `json:"attributes"`
			} `json:"payments"`
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (g *PayMongoGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	var payload checkoutSessionPayload
	attrs := &payload.Data.Attributes

	for _, it := range req.Items {
		currency := it.Currency
		if currency == "" {
			currency = "PHP"
		}
		attrs.LineItems = append(attrs.LineItems, lineItemPayload{
			Name:     it.Name,
			Amount:   toCentavo(it.Amount),
			Quantity: it.Quantity,
			Currency: currency,
		})
	}
	attrs.PaymentMethodTypes = methodTypes[req.PaymentMethod]
	if len(attrs.PaymentMethodTypes) == 0 {
		return nil, fmt.Errorf("unsupported gateway payment method: %s", req.PaymentMethod)
	}
	attrs.SuccessURL = g.successURL
	attrs.CancelURL = g.cancelURL
	attrs.Description = "Order " + req.OrderNumber
	attrs.ReferenceNumber = req.OrderID

	var resp checkoutSessionResponse
	if err := g.do(ctx, http.MethodPost, "/v1/checkout_sessions", &payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("gateway rejected session: %s (%s)", resp.Errors[0].Detail, resp.Errors[0].Code)
	}

	return &CheckoutSession{
		ID:          resp.Data.ID,
		CheckoutURL: resp.Data.Attributes.CheckoutURL,
		Status:      SessionStatusUnpaid,
	}, nil
}

func (g *PayMongoGateway) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var resp checkoutSessionResponse
	if err := g.do(ctx, http.MethodGet, "/v1/checkout_sessions/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("gateway session lookup failed: %s (%s)", resp.Errors[0].Detail, resp.Errors[0].Code)
	}

	session := &CheckoutSession{
		ID:          resp.Data.ID,
		CheckoutURL: resp.Data.Attributes.CheckoutURL,
		Status:      mapSessionStatus(&resp),
	}
	for _, p := range resp.Data.Attributes.Payments {
		if p.Attributes.Status == "paid" && p.Attributes.PaidAt > 0 {
			session.PaidAt = time.Unix(p.Attributes.PaidAt, 0)
			break
		}
	}
	return session, nil
}

// mapSessionStatus 网关侧的多个状态字段折算成本地会话状态
func mapSessionStatus(resp *checkoutSessionResponse) string {
	for _, p := range resp.Data.Attributes.Payments {
		if p.Attributes.Status == "paid" {
			return SessionStatusPaid
		}
	}
	switch resp.Data.Attributes.Status {
	case "expired":
		return SessionStatusExpired
	case "cancelled", "canceled":
		return SessionStatusCanceled
	}
	if resp.Data.Attributes.PaymentIntent.Attributes.Status == "succeeded" {
		return SessionStatusPaid
	}
	return SessionStatusUnpaid
}

func (g *PayMongoGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", g.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// 超时/网络错误一律算网关不可达，调用方不能据此判定支付失败
		logger.Log.Warn("gateway request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// toCentavo 主货币单位转最小单位，四舍五入避免浮点残差
func toCentavo(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

var _ CheckoutGateway = (*PayMongoGateway)(nil)
