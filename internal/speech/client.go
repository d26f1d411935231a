package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/capso-ai/capso/internal/config"
)

// Speed bounds accepted by the application. The provider itself accepts
// 0.25 to 4.0 but extremes produce unusable narration.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Synthesis failure classes surfaced to clients.
var (
	ErrNotConfigured = errors.New("speech provider is not configured")
	ErrInvalidAPIKey = errors.New("speech provider rejected the API key")
	ErrRateLimited   = errors.New("speech provider rate limit exceeded")
	ErrUnknownVoice  = errors.New("speech provider rejected the voice")
)

// Synthesizer converts plain text to MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
	SupportsSpeed() bool
}

// SynthesisRequest describes one text-to-speech call.
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

// Client talks to an OpenAI-compatible speech endpoint.
type Client struct {
	cfg  config.TTSConfig
	http *http.Client
}

// NewClient creates a speech Client. Returns nil when no API key is set;
// callers treat a nil Synthesizer as not configured.
func NewClient(cfg config.TTSConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// SupportsSpeed reports whether the provider applies speed remotely.
// When false the caller adjusts tempo locally after synthesis.
func (c *Client) SupportsSpeed() bool {
	return c.cfg.SupportsSpeed
}

// ClampSpeed bounds a requested narration speed to the supported range.
// A zero value means default speed.
func ClampSpeed(speed float64) float64 {
	if speed == 0 {
		return 1.0
	}
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

type ttsRequest struct {
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize posts text to the speech endpoint and returns MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	payload := ttsRequest{
		Input:          req.Text,
		Voice:          ResolveVoice(req.Voice),
		ResponseFormat: "mp3",
	}
	if c.cfg.SupportsSpeed {
		payload.Speed = ClampSpeed(req.Speed)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling speech provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyFailure(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech provider returned empty audio")
	}
	return audio, nil
}

func (c *Client) classifyFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.ToLower(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case strings.Contains(msg, "voice"):
		return fmt.Errorf("%w: %s", ErrUnknownVoice, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("speech provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
