package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/auth"
)

// ErrNoCustomer is returned when a user has no Stripe customer yet.
var ErrNoCustomer = errors.New("no stripe customer for user")

// Webhook payloads above this size are rejected outright.
const maxWebhookBodyBytes = int64(64 << 10)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{
		svc:           svc,
		webhookSecret: webhookSecret,
	}
}

type sessionURLResponse struct {
	URL string `json:"url"`
}

type verifySessionRequest struct {
	SessionID string `json:"session_id"`
}

type verifySessionResponse struct {
	Upgraded bool `json:"upgraded"`
}

// CreateCheckoutSession starts a Stripe Checkout session for the pro subscription.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	if !h.svc.Configured() {
		api.HandleError(w, api.NewProviderConfigError("billing is not configured"))
		return
	}

	url, err := h.svc.CreateCheckoutSession(r.Context(), userID)
	if err != nil {
		slog.Error("creating checkout session", "error", err, "user_id", userID)
		api.HandleError(w, api.NewProviderError("failed to create checkout session"))
		return
	}

	api.JSON(w, http.StatusOK, sessionURLResponse{URL: url})
}

// VerifyCheckoutSession confirms payment for a session the frontend returned with.
func (h *Handler) VerifyCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req verifySessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		api.HandleError(w, api.NewBadRequestError("session_id is required"))
		return
	}

	upgraded, err := h.svc.VerifyCheckoutSession(r.Context(), userID, req.SessionID)
	if err != nil {
		slog.Error("verifying checkout session", "error", err, "user_id", userID)
		api.HandleError(w, api.NewProviderError("failed to verify checkout session"))
		return
	}

	api.JSON(w, http.StatusOK, verifySessionResponse{Upgraded: upgraded})
}

// CreatePortalSession returns a customer portal URL for subscription management.
func (h *Handler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	url, err := h.svc.CreatePortalSession(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNoCustomer) {
			api.HandleError(w, api.NewBadRequestError("no billing history for this account"))
			return
		}
		slog.Error("creating portal session", "error", err, "user_id", userID)
		api.HandleError(w, api.NewProviderError("failed to create portal session"))
		return
	}

	api.JSON(w, http.StatusOK, sessionURLResponse{URL: url})
}

// StripeWebhook verifies the event signature and applies tier changes.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		api.HandleError(w, api.NewProviderConfigError("webhook is not configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid payload"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		slog.Warn("stripe webhook signature verification failed", "error", err)
		api.HandleError(w, api.NewBadRequestError("signature verification failed"))
		return
	}

	if err := h.svc.HandleEvent(r.Context(), event); err != nil {
		slog.Error("handling stripe event", "error", err, "type", event.Type)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "ok")
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}
