package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/auth"
	"github.com/capso-ai/capso/internal/generation"
	"github.com/capso-ai/capso/internal/users"
)

// GenerationStore supplies the user's generation history for the export.
type GenerationStore interface {
	ListAll(ctx context.Context, userID uuid.UUID) ([]generation.UsageRecord, error)
}

// SessionRevoker invalidates all of a user's refresh tokens.
type SessionRevoker interface {
	Logout(ctx context.Context, userID string) error
}

type Handler struct {
	userSvc     *users.Service
	generations GenerationStore
	sessions    SessionRevoker
	validate    *validator.Validate
}

func NewHandler(userSvc *users.Service, generations GenerationStore, sessions SessionRevoker) *Handler {
	return &Handler{
		userSvc:     userSvc,
		generations: generations,
		sessions:    sessions,
		validate:    validator.New(),
	}
}

type profileResponse struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
}

func profileOf(u *users.User) profileResponse {
	return profileResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		SubscriptionTier: u.SubscriptionTier,
		CreatedAt:        u.CreatedAt,
	}
}

// Profile returns the authenticated user's account details.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	api.JSONRaw(w, http.StatusOK, profileOf(user))
}

type updateProfileRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdateProfile changes name and email. A new email must not belong to
// another account.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	updated, err := h.userSvc.UpdateProfile(r.Context(), user.ID, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			api.HandleError(w, api.ErrEmailAlreadyExists)
			return
		}
		slog.Error("updating profile", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONRaw(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    profileOf(updated),
	})
}

// Notifications returns the user's notification preferences.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	api.JSONRaw(w, http.StatusOK, users.NotificationPreferences{
		EmailNotifications: user.EmailNotifications,
		GenerationAlerts:   user.GenerationAlerts,
	})
}

type updateNotificationsRequest struct {
	EmailNotifications *bool `json:"email_notifications"`
	GenerationAlerts   *bool `json:"generation_alerts"`
}

// UpdateNotifications applies a partial preference update; fields absent
// from the body keep their stored value.
func (h *Handler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req updateNotificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	prefs := users.NotificationPreferences{
		EmailNotifications: user.EmailNotifications,
		GenerationAlerts:   user.GenerationAlerts,
	}
	if req.EmailNotifications != nil {
		prefs.EmailNotifications = *req.EmailNotifications
	}
	if req.GenerationAlerts != nil {
		prefs.GenerationAlerts = *req.GenerationAlerts
	}

	if err := h.userSvc.UpdateNotificationPreferences(r.Context(), user.ID, prefs); err != nil {
		slog.Error("updating notification preferences", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONRaw(w, http.StatusOK, map[string]any{
		"success":     true,
		"preferences": prefs,
	})
}

type exportGeneration struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	AudioID   uuid.UUID `json:"audio_id"`
	Summary   string    `json:"summary"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

type exportResponse struct {
	Account struct {
		profileResponse
		Preferences users.NotificationPreferences `json:"preferences"`
	} `json:"account"`
	AudioGenerations []exportGeneration `json:"audio_generations"`
	ExportDate       time.Time          `json:"export_date"`
	TotalGenerations int                `json:"total_generations"`
}

// ExportData returns the user's account and generation history as a
// downloadable JSON document.
func (h *Handler) ExportData(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	records, err := h.generations.ListAll(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing generations for export", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	resp := exportResponse{
		AudioGenerations: make([]exportGeneration, 0, len(records)),
		ExportDate:       time.Now().UTC(),
		TotalGenerations: len(records),
	}
	resp.Account.profileResponse = profileOf(user)
	resp.Account.Preferences = users.NotificationPreferences{
		EmailNotifications: user.EmailNotifications,
		GenerationAlerts:   user.GenerationAlerts,
	}
	for _, rec := range records {
		resp.AudioGenerations = append(resp.AudioGenerations, exportGeneration{
			ID:        rec.ID,
			FileName:  rec.FileName,
			AudioID:   rec.AudioID,
			Summary:   rec.Summary,
			Month:     rec.Month,
			Year:      rec.Year,
			CreatedAt: rec.CreatedAt,
		})
	}

	filename := fmt.Sprintf("capso-export-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	api.JSONRaw(w, http.StatusOK, resp)
}

type deleteAccountRequest struct {
	Password     string `json:"password" validate:"required"`
	ConfirmEmail string `json:"confirm_email" validate:"required,email"`
}

// DeleteAccount removes the account after the user re-enters their
// password and confirms their email. Generation records cascade away.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if !strings.EqualFold(strings.TrimSpace(req.ConfirmEmail), user.Email) {
		api.HandleError(w, api.NewBadRequestError("email confirmation does not match"))
		return
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	if err := h.userSvc.Delete(r.Context(), user.ID); err != nil {
		slog.Error("deleting account", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	// Unrevoked refresh tokens expire on their own.
	if err := h.sessions.Logout(r.Context(), user.ID.String()); err != nil {
		slog.Warn("revoking sessions after account deletion", "error", err, "user_id", user.ID)
	}

	api.JSONRaw(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "account deleted",
	})
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil, false
	}

	user, err := h.userSvc.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("loading user", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return nil, false
	}
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil, false
	}
	return user, true
}
