package generation

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/auth"
	"github.com/capso-ai/capso/internal/summarize"
	"github.com/capso-ai/capso/internal/users"
)

const defaultHistoryLimit = 20

type Handler struct {
	svc            *Service
	gate           *Gate
	userSvc        *users.Service
	maxUploadBytes int64
	publicURL      string
}

func NewHandler(svc *Service, gate *Gate, userSvc *users.Service, maxUploadBytes int64, publicURL string) *Handler {
	return &Handler{
		svc:            svc,
		gate:           gate,
		userSvc:        userSvc,
		maxUploadBytes: maxUploadBytes,
		publicURL:      strings.TrimRight(publicURL, "/"),
	}
}

type generateResponse struct {
	Success     bool             `json:"success"`
	Audio       string           `json:"audio"`
	DownloadURL string           `json:"download_url"`
	FileName    string           `json:"file_name"`
	Summary     string           `json:"summary"`
	Settings    settingsResponse `json:"settings"`
	Usage       Usage            `json:"usage"`
	Degraded    []string         `json:"degraded,omitempty"`
}

type settingsResponse struct {
	Length   string  `json:"length"`
	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Music    string  `json:"music,omitempty"`
}

type summaryResponse struct {
	Summary  string `json:"summary"`
	Length   string `json:"length"`
	Language string `json:"language"`
}

type extractResponse struct {
	Text string `json:"text"`
}

type historyItem struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	Summary     string    `json:"summary"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   string    `json:"created_at"`
}

// Generate converts an uploaded document into narrated audio.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	req, err := h.parseRequest(w, r, true)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.Generate(r.Context(), user, req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	usage, err := h.gate.CurrentUsage(r.Context(), user)
	if err != nil {
		slog.Error("computing usage after generation", "error", err, "user_id", user.ID)
	}

	api.JSONRaw(w, http.StatusOK, generateResponse{
		Success:     true,
		Audio:       "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(result.Audio),
		DownloadURL: h.downloadURL(result.AudioID),
		FileName:    req.FileName,
		Summary:     result.Summary,
		Settings: settingsResponse{
			Length:   summarize.NormalizeLength(req.SummaryLength),
			Language: req.Language,
			Voice:    req.Voice,
			Speed:    req.Speed,
			Music:    req.MusicTrack,
		},
		Usage:    usage,
		Degraded: result.Degraded,
	})
}

// GenerateSummary previews the summary without synthesizing audio.
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r); !ok {
		return
	}

	req, err := h.parseRequest(w, r, false)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	summary, err := h.svc.Summary(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONRaw(w, http.StatusOK, summaryResponse{
		Summary:  summary,
		Length:   summarize.NormalizeLength(req.SummaryLength),
		Language: req.Language,
	})
}

// ExtractText returns the raw extracted document text.
func (h *Handler) ExtractText(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authedUser(w, r); !ok {
		return
	}

	req, err := h.parseRequest(w, r, true)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	text, err := h.svc.ExtractText(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONRaw(w, http.StatusOK, extractResponse{Text: text})
}

// Usage reports the user's generations against their monthly limit.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	usage, err := h.gate.CurrentUsage(r.Context(), user)
	if err != nil {
		slog.Error("computing usage", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONRaw(w, http.StatusOK, usage)
}

// History lists the user's past generations, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit < 1 || limit > 100 {
		limit = defaultHistoryLimit
	}
	offset := max(queryInt(r, "offset", 0), 0)

	records, err := h.svc.repo.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		slog.Error("listing generation history", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	items := make([]historyItem, 0, len(records))
	for _, rec := range records {
		items = append(items, historyItem{
			ID:          rec.ID,
			FileName:    rec.FileName,
			Summary:     rec.Summary,
			DownloadURL: h.downloadURL(rec.AudioID),
			CreatedAt:   rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	api.JSONRaw(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// Download resolves a synthetic download URL. Audio is never stored
// durably, so after verifying ownership this always directs the client
// to regenerate.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	audioID, err := uuid.Parse(chi.URLParam(r, "audioID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid audio id"))
		return
	}

	rec, err := h.svc.repo.FindByAudioID(r.Context(), user.ID, audioID)
	if err != nil {
		slog.Error("looking up audio record", "error", err, "user_id", user.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if rec == nil {
		api.HandleError(w, api.NewNotFoundError("audio not found"))
		return
	}

	api.HandleError(w, api.NewNotFoundError(
		"generated audio is not stored on the server, regenerate it from the original document"))
}

func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request, fileRequired bool) (*Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, api.NewFileError("file exceeds the 50MB upload limit")
		}
		return nil, api.NewBadRequestError("invalid multipart form")
	}

	req := &Request{
		SummaryLength: r.FormValue("summaryLength"),
		Language:      strings.ToLower(r.FormValue("language")),
		Voice:         r.FormValue("voice"),
		MusicTrack:    r.FormValue("music"),
		Folder:        r.FormValue("folder"),
		CustomSummary: strings.TrimSpace(r.FormValue("customSummary")),
		CustomText:    strings.TrimSpace(r.FormValue("customText")),
	}
	if req.SummaryLength == "" {
		req.SummaryLength = r.FormValue("length")
	}
	if req.Voice == "" {
		req.Voice = r.FormValue("tone")
	}
	if req.Language == "" {
		req.Language = "en"
	}
	if !summarize.SupportedLanguage(req.Language) {
		return nil, api.NewBadRequestError("unsupported language, use en, fr or es")
	}

	if raw := r.FormValue("speed"); raw != "" {
		speed, err := strconv.ParseFloat(raw, 64)
		if err != nil || speed <= 0 {
			return nil, api.NewBadRequestError("speed must be a positive number")
		}
		req.Speed = speed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if !fileRequired && req.CustomText != "" {
			return req, nil
		}
		return nil, api.NewFileError("a document file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, api.NewFileError("file exceeds the 50MB upload limit")
		}
		return nil, api.NewFileError("failed to read uploaded file")
	}
	if len(data) == 0 {
		return nil, api.NewFileError("uploaded file is empty")
	}

	req.FileName = header.Filename
	req.ContentType = header.Header.Get("Content-Type")
	req.FileData = data
	return req, nil
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

func (h *Handler) downloadURL(audioID uuid.UUID) string {
	return h.publicURL + "/api/v1/audio/download/" + audioID.String()
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
