package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/skyhop/internal/core/ports"
	"github.com/samirrijal/skyhop/internal/pkg/config"
)

// Gateway implements ports.PaymentGateway against the gateway's REST API.
type Gateway struct {
	client        *fasthttp.Client
	baseURL       string
	auth          string
	currency      string
	minChargeable int64
	timeout       time.Duration
}

func NewGateway(cfg config.PaymentConfig) *Gateway {
	return &Gateway{
		client: &fasthttp.Client{
			Name:                "skyhop",
			MaxConnsPerHost:     32,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL:       cfg.GatewayURL,
		auth:          "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.KeyID+":"+cfg.KeySecret)),
		currency:      cfg.Currency,
		minChargeable: cfg.MinChargeable,
		timeout:       10 * time.Second,
	}
}

func (g *Gateway) MinimumChargeable() int64 { return g.minChargeable }

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *Gateway) CreateOrder(ctx context.Context, amount int64, receipt string) (*ports.PaymentOrder, error) {
	var order ports.PaymentOrder
	if err := g.post(ctx, "/orders", orderRequest{Amount: amount, Currency: g.currency, Receipt: receipt}, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

// FetchOrder reads an order back from the gateway.
func (g *Gateway) FetchOrder(ctx context.Context, orderID string) (*ports.PaymentOrder, error) {
	var order ports.PaymentOrder
	if err := g.do(ctx, fasthttp.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return &order, nil
}

type refundRequest struct {
	Amount  int64             `json:"amount"`
	Receipt string            `json:"receipt"`
	Notes   map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund pays amount back against paymentID. reference is sent as the
// receipt so a retried payout is recognisable on the gateway side.
func (g *Gateway) Refund(ctx context.Context, paymentID string, amount int64, reference string) (string, error) {
	var out refundResponse
	body := refundRequest{Amount: amount, Receipt: reference, Notes: map[string]string{"refund_id": reference}}
	if err := g.post(ctx, "/payments/"+paymentID+"/refund", body, &out); err != nil {
		return "", fmt.Errorf("refund payment %s: %w", paymentID, err)
	}
	return out.ID, nil
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *Gateway) post(ctx context.Context, path string, in, out any) error {
	return g.do(ctx, fasthttp.MethodPost, path, in, out)
}

// do sends in as the JSON body when non-nil and decodes a 2xx reply into out.
func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAuthorization, g.auth)
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := g.client.DoTimeout(req, resp, timeout); err != nil {
		return err
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		var ge gatewayError
		if json.Unmarshal(resp.Body(), &ge) == nil && ge.Error.Description != "" {
			return fmt.Errorf("gateway %d %s: %s", code, ge.Error.Code, ge.Error.Description)
		}
		return fmt.Errorf("gateway returned %d", code)
	}
	return json.Unmarshal(resp.Body(), out)
}

// Dial overrides the client's dialer.
func (g *Gateway) Dial(dial fasthttp.DialFunc) {
	g.client.Dial = dial
}
