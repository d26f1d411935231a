package billing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/capso-ai/capso/internal/config"
	"github.com/capso-ai/capso/internal/users"
)

const testWebhookSecret = "whsec_test_secret"

type fakeUserStore struct {
	byID       map[uuid.UUID]*users.User
	byCustomer map[string]*users.User
	tierCalls  []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:       make(map[uuid.UUID]*users.User),
		byCustomer: make(map[string]*users.User),
	}
}

func (f *fakeUserStore) add(user *users.User) {
	f.byID[user.ID] = user
	if user.StripeCustomerID != "" {
		f.byCustomer[user.StripeCustomerID] = user
	}
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserStore) GetByStripeCustomerID(_ context.Context, customerID string) (*users.User, error) {
	return f.byCustomer[customerID], nil
}

func (f *fakeUserStore) SetStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	if u, ok := f.byID[id]; ok {
		u.StripeCustomerID = customerID
		f.byCustomer[customerID] = u
	}
	return nil
}

func (f *fakeUserStore) ChangeSubscriptionTier(_ context.Context, id uuid.UUID, tier string) error {
	f.tierCalls = append(f.tierCalls, tier)
	if u, ok := f.byID[id]; ok {
		u.SubscriptionTier = tier
	}
	return nil
}

func newWebhookHandler(t *testing.T, store *fakeUserStore) *Handler {
	t.Helper()
	svc := NewService(store, nil, config.StripeConfig{
		SecretKey:         "sk_test_key",
		WebhookSecret:     testWebhookSecret,
		PriceIDProMonthly: "price_test",
		FrontendURL:       "https://capso.example",
	})
	return NewHandler(svc, testWebhookSecret)
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	store := newFakeUserStore()
	h := newWebhookHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe",
		bytes.NewReader([]byte(`{"type":"checkout.session.completed"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.tierCalls)
}

func TestStripeWebhook_CheckoutCompletedUpgradesToPro(t *testing.T) {
	store := newFakeUserStore()
	user := &users.User{
		ID:               uuid.New(),
		Email:            "a@b.com",
		SubscriptionTier: users.TierStarter,
		StripeCustomerID: "cus_123",
	}
	store.add(user)
	h := newWebhookHandler(t, store)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer": "cus_123"}}
	}`)

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.TierPro, user.SubscriptionTier)
	assert.Equal(t, []string{users.TierPro}, store.tierCalls)
}

func TestStripeWebhook_SubscriptionDeletedDowngradesToStarter(t *testing.T) {
	store := newFakeUserStore()
	user := &users.User{
		ID:               uuid.New(),
		Email:            "a@b.com",
		SubscriptionTier: users.TierPro,
		StripeCustomerID: "cus_123",
	}
	store.add(user)
	h := newWebhookHandler(t, store)

	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "customer": "cus_123"}}
	}`)

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.TierStarter, user.SubscriptionTier)
}

func TestStripeWebhook_TierUnchangedIsNoOp(t *testing.T) {
	store := newFakeUserStore()
	user := &users.User{
		ID:               uuid.New(),
		Email:            "a@b.com",
		SubscriptionTier: users.TierPro,
		StripeCustomerID: "cus_123",
	}
	store.add(user)
	h := newWebhookHandler(t, store)

	payload := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "customer": "cus_123"}}
	}`)

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.tierCalls)
}

func TestStripeWebhook_IgnoresUnhandledEventTypes(t *testing.T) {
	store := newFakeUserStore()
	h := newWebhookHandler(t, store)

	payload := []byte(`{
		"id": "evt_4",
		"type": "invoice.paid",
		"data": {"object": {"id": "in_1"}}
	}`)

	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.tierCalls)
}
