package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	calls   int
	lastReq CheckoutSessionRequest
	session CheckoutSession
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	f.calls++
	f.lastReq = req
	return f.session, f.err
}

func TestManagerDefaultsToStripe(t *testing.T) {
	stripe := &fakeProvider{session: CheckoutSession{ID: "cs_stripe"}}
	other := &fakeProvider{session: CheckoutSession{ID: "cs_other"}}

	mgr, err := NewManager(map[string]Provider{"Stripe": stripe, "other": other})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{Currency: "usd"}, CheckoutSessionRequest{Currency: "usd"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != "stripe" || session.ID != "cs_stripe" {
		t.Fatalf("unexpected session %+v", session)
	}
	if other.calls != 0 {
		t.Fatalf("expected other provider unused")
	}
}

func TestManagerHonoursPreferenceAndCurrencyRoutes(t *testing.T) {
	stripe := &fakeProvider{session: CheckoutSession{ID: "cs_stripe"}}
	other := &fakeProvider{session: CheckoutSession{ID: "cs_other"}}

	mgr, err := NewManager(
		map[string]Provider{"stripe": stripe, "other": other},
		WithCurrencyRoutes(map[string]string{"inr": "Other"}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{Currency: "INR"}, CheckoutSessionRequest{})
	if err != nil || session.Provider != "other" {
		t.Fatalf("expected currency route to other, got %+v err=%v", session, err)
	}

	session, err = mgr.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "stripe", Currency: "INR"}, CheckoutSessionRequest{})
	if err != nil || session.Provider != "stripe" {
		t.Fatalf("expected preferred provider to win, got %+v err=%v", session, err)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	mgr, err := NewManager(
		map[string]Provider{"a": &fakeProvider{}, "b": &fakeProvider{}},
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	_, err = mgr.CreateCheckoutSession(context.Background(), PaymentContext{PreferredProvider: "missing"}, CheckoutSessionRequest{})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestManagerPropagatesProviderErrors(t *testing.T) {
	boom := errors.New("card network down")
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{err: boom}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.CreateCheckoutSession(context.Background(), PaymentContext{}, CheckoutSessionRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewManagerValidatesRegistrations(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error for empty providers")
	}
	if _, err := NewManager(map[string]Provider{" ": &fakeProvider{}}); err == nil {
		t.Fatalf("expected error for blank key")
	}
	if _, err := NewManager(map[string]Provider{"stripe": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}
