package payment_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/skyhop/internal/adapters/payment"
	"github.com/samirrijal/skyhop/internal/pkg/config"
)

func TestSignatureVerifier(t *testing.T) {
	v := payment.NewSignatureVerifier("s3cret")
	sig := payment.Sign([]byte("s3cret"), "order_1", "pay_1")

	tests := []struct {
		name              string
		order, payment, s string
		want              bool
	}{
		{"valid", "order_1", "pay_1", sig, true},
		{"swapped ids", "pay_1", "order_1", sig, false},
		{"other payment", "order_1", "pay_2", sig, false},
		{"wrong secret", "order_1", "pay_1", payment.Sign([]byte("other"), "order_1", "pay_1"), false},
		{"empty signature", "order_1", "pay_1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(context.Background(), tt.order, tt.payment, tt.s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("want %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// echo -n "order_1|pay_1" | openssl dgst -sha256 -hmac s3cret
	got := payment.Sign([]byte("s3cret"), "order_1", "pay_1")
	if got != "44422d618d76e6e81c5f002f4d5108385750b52eb8db4e9c7a4231ddfac02840" {
		t.Fatalf("unexpected signature %s", got)
	}
}

// startGateway serves handler on an in-memory listener and points the
// fasthttp client at it.
func startGateway(t *testing.T, handler fasthttp.RequestHandler) *fasthttputil.InmemoryListener {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestGateway_CreateOrderAndRefund(t *testing.T) {
	var seenAuth, seenRefundPath string
	ln := startGateway(t, func(ctx *fasthttp.RequestCtx) {
		seenAuth = string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
		switch path := string(ctx.Path()); path {
		case "/orders":
			var in map[string]any
			_ = json.Unmarshal(ctx.PostBody(), &in)
			ctx.SetContentType("application/json")
			_ = json.NewEncoder(ctx).Encode(map[string]any{
				"id": "order_9", "amount": in["amount"], "currency": in["currency"], "receipt": in["receipt"],
			})
		case "/orders/order_9":
			if !ctx.IsGet() || len(ctx.PostBody()) != 0 {
				ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
				return
			}
			ctx.SetContentType("application/json")
			_, _ = ctx.WriteString(`{"id":"order_9","amount":6000,"amount_paid":6000,"currency":"NPR","status":"paid"}`)
		case "/payments/pay_1/refund":
			seenRefundPath = path
			ctx.SetContentType("application/json")
			_, _ = ctx.WriteString(`{"id":"rfnd_1","status":"processed"}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			_, _ = ctx.WriteString(`{"error":{"code":"BAD_REQUEST_ERROR","description":"unknown path"}}`)
		}
	})

	g := payment.NewGateway(config.PaymentConfig{
		KeyID: "key", KeySecret: "secret", GatewayURL: "http://gateway", Currency: "NPR", MinChargeable: 100,
	})
	g.Dial(func(addr string) (net.Conn, error) { return ln.Dial() })

	order, err := g.CreateOrder(context.Background(), 6000, "rsch_1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_9" || order.Amount != 6000 || order.Currency != "NPR" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if seenAuth != "Basic a2V5OnNlY3JldA==" {
		t.Fatalf("unexpected auth header %q", seenAuth)
	}

	fetched, err := g.FetchOrder(context.Background(), "order_9")
	if err != nil || fetched.AmountPaid != 6000 || fetched.Status != "paid" {
		t.Fatalf("fetch order: %+v %v", fetched, err)
	}
	if _, err := g.FetchOrder(context.Background(), "order_404"); err == nil {
		t.Fatal("expected gateway error for an unknown order")
	}

	ref, err := g.Refund(context.Background(), "pay_1", 5600, "refund-1")
	if err != nil || ref != "rfnd_1" || seenRefundPath == "" {
		t.Fatalf("refund: %q %v", ref, err)
	}

	if _, err := g.Refund(context.Background(), "pay_unknown", 1, "refund-2"); err == nil {
		t.Fatal("expected gateway error")
	}
	if g.MinimumChargeable() != 100 {
		t.Fatalf("unexpected minimum %d", g.MinimumChargeable())
	}
}
