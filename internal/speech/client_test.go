package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capso-ai/capso/internal/config"
)

func newTestClient(serverURL string, supportsSpeed bool) *Client {
	return NewClient(config.TTSConfig{
		URL:           serverURL,
		APIKey:        "test-key",
		SupportsSpeed: supportsSpeed,
		Timeout:       5 * time.Second,
	})
}

func TestSynthesize_Success(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, true)
	audio, err := client.Synthesize(context.Background(), SynthesisRequest{
		Text:  "hello",
		Voice: "sarah",
		Speed: 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "hello", got.Input)
	assert.Equal(t, "alloy", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)
	assert.Equal(t, 1.5, got.Speed)
}

func TestSynthesize_SpeedOmittedWhenUnsupported(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, false)
	_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 1.5})
	require.NoError(t, err)
	assert.Zero(t, got.Speed)
}

func TestSynthesize_ClampsSpeed(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, true)
	_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi", Speed: 9.0})
	require.NoError(t, err)
	assert.Equal(t, MaxSpeed, got.Speed)
}

func TestSynthesize_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid key"}`, ErrInvalidAPIKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, ErrRateLimited},
		{"unknown voice", http.StatusBadRequest, `{"error":"unknown voice 'zeus'"}`, ErrUnknownVoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL, true)
			_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSynthesize_GenericProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, true)
	_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSynthesize_NotConfigured(t *testing.T) {
	client := NewClient(config.TTSConfig{URL: "http://localhost:1"})
	_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, true)
	_, err := client.Synthesize(context.Background(), SynthesisRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty audio")
}
