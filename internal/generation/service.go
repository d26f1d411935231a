package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/extract"
	"github.com/capso-ai/capso/internal/metrics"
	inats "github.com/capso-ai/capso/internal/nats"
	"github.com/capso-ai/capso/internal/speech"
	"github.com/capso-ai/capso/internal/summarize"
	"github.com/capso-ai/capso/internal/users"
)

// Summarizer is the summary surface the pipeline needs.
// *summarize.Service satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, text, length string) (string, error)
	Translate(ctx context.Context, text, lang string) string
}

// PostProcessor applies optional local audio transforms.
// *audioproc.Processor satisfies it.
type PostProcessor interface {
	AdjustSpeed(ctx context.Context, audio []byte, speed float64) ([]byte, error)
	MixMusic(ctx context.Context, audio []byte, track string) ([]byte, error)
}

// Service runs the document-to-audio pipeline.
type Service struct {
	gate       *Gate
	extractor  extract.Extractor
	summarizer Summarizer
	synth      speech.Synthesizer
	post       PostProcessor
	repo       Repository
	publisher  *inats.Publisher
}

// NewService wires the pipeline. synth may be nil when speech is not
// configured; publisher may be nil when NATS is disabled.
func NewService(
	gate *Gate,
	extractor extract.Extractor,
	summarizer Summarizer,
	synth speech.Synthesizer,
	post PostProcessor,
	repo Repository,
	publisher *inats.Publisher,
) *Service {
	return &Service{
		gate:       gate,
		extractor:  extractor,
		summarizer: summarizer,
		synth:      synth,
		post:       post,
		repo:       repo,
		publisher:  publisher,
	}
}

// Generate runs the full pipeline for one request. The usage gate runs
// before any provider call; the usage record is written only after the
// whole pipeline succeeds.
func (s *Service) Generate(ctx context.Context, user *users.User, req *Request) (*Result, error) {
	if err := s.gate.Check(ctx, user, req); err != nil {
		return nil, err
	}

	result, err := s.run(ctx, user, req)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("failure").Inc()
		s.publishGenerationEvent(user, req, err)
		return nil, err
	}

	metrics.GenerationsTotal.WithLabelValues("success").Inc()
	s.publishGenerationEvent(user, req, nil)
	return result, nil
}

func (s *Service) run(ctx context.Context, user *users.User, req *Request) (*Result, error) {
	summary, err := s.Summary(ctx, req)
	if err != nil {
		return nil, err
	}

	narration := speech.StripMarkdown(summary)
	if narration == "" {
		return nil, api.NewFileError("document produced no narratable text")
	}

	if s.synth == nil {
		return nil, api.NewProviderConfigError("speech synthesis is not configured")
	}

	speed := speech.ClampSpeed(req.Speed)

	var audio []byte
	err = timeStage("synthesize", func() error {
		synthReq := speech.SynthesisRequest{Text: narration, Voice: req.Voice}
		if s.synth.SupportsSpeed() {
			synthReq.Speed = speed
		}
		audio, err = s.synth.Synthesize(ctx, synthReq)
		return err
	})
	if err != nil {
		return nil, mapSpeechError(err)
	}

	result := &Result{
		AudioID: uuid.New(),
		Summary: summary,
	}

	if !s.synth.SupportsSpeed() && speed != 1.0 {
		timeStage("adjust_speed", func() error {
			adjusted, err := s.post.AdjustSpeed(ctx, audio, speed)
			if err != nil {
				slog.Warn("speed adjustment degraded to original audio", "error", err)
				metrics.PostProcessDegradedTotal.WithLabelValues("speed").Inc()
				result.Degraded = append(result.Degraded, "speed")
			}
			audio = adjusted
			return nil
		})
	}

	if req.MusicTrack != "" && req.MusicTrack != "none" {
		timeStage("mix_music", func() error {
			mixed, err := s.post.MixMusic(ctx, audio, req.MusicTrack)
			if err != nil {
				slog.Warn("music mixing degraded to original audio", "error", err, "track", req.MusicTrack)
				metrics.PostProcessDegradedTotal.WithLabelValues("music").Inc()
				result.Degraded = append(result.Degraded, "music")
			}
			audio = mixed
			return nil
		})
	}

	result.Audio = audio

	now := time.Now().UTC()
	rec := &UsageRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		FileName:  req.FileName,
		AudioID:   result.AudioID,
		Summary:   summaryPrefix(summary),
		Month:     int(now.Month()),
		Year:      now.Year(),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording generation: %w", err)
	}

	return result, nil
}

// Summary produces the translated summary without synthesizing audio.
// A custom summary bypasses the whole text stage; a custom text only
// replaces extraction and is still summarized and translated.
func (s *Service) Summary(ctx context.Context, req *Request) (string, error) {
	if req.CustomSummary != "" {
		return req.CustomSummary, nil
	}

	text := req.CustomText
	if text == "" {
		err := timeStage("extract", func() error {
			var err error
			text, err = s.extractor.Extract(ctx, req.FileName, req.ContentType, req.FileData)
			return err
		})
		if err != nil {
			return "", mapExtractError(err)
		}
	}

	var summary string
	err := timeStage("summarize", func() error {
		var err error
		summary, err = s.summarizer.Summarize(ctx, text, req.SummaryLength)
		return err
	})
	if err != nil {
		return "", mapSummarizeError(err)
	}

	timeStage("translate", func() error {
		summary = s.summarizer.Translate(ctx, summary, req.Language)
		return nil
	})
	return summary, nil
}

// ExtractText runs extraction alone, for the preview endpoint.
func (s *Service) ExtractText(ctx context.Context, req *Request) (string, error) {
	text, err := s.extractor.Extract(ctx, req.FileName, req.ContentType, req.FileData)
	if err != nil {
		return "", mapExtractError(err)
	}
	return text, nil
}

func (s *Service) publishGenerationEvent(user *users.User, req *Request, genErr error) {
	if s.publisher == nil {
		return
	}

	event := inats.GenerationEvent{
		UserID:    user.ID,
		EventType: inats.EventGenerationCompleted,
		FileName:  req.FileName,
		Language:  req.Language,
		Voice:     req.Voice,
		Timestamp: time.Now().UTC(),
	}
	if genErr != nil {
		event.EventType = inats.EventGenerationFailed
		event.Failure = genErr.Error()
	}

	// Best effort with its own deadline so a slow broker never holds the
	// response.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishGenerationEvent(ctx, event); err != nil {
		slog.Warn("publishing generation event", "error", err)
	}
}

func timeStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

func mapExtractError(err error) error {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return api.NewFileError("unsupported file type, upload a PDF or Word document")
	case errors.Is(err, extract.ErrNoSelectableText):
		return api.NewFileError("no selectable text found in the document, scanned images cannot be processed")
	case errors.Is(err, extract.ErrCorruptedDocument):
		return api.NewFileError("the document could not be read, it may be corrupted")
	default:
		return err
	}
}

func mapSummarizeError(err error) error {
	switch {
	case errors.Is(err, summarize.ErrNotConfigured):
		return api.NewProviderConfigError("summarization is not configured")
	case errors.Is(err, summarize.ErrInvalidAPIKey):
		return api.NewProviderConfigError("summarization provider rejected the API key")
	case errors.Is(err, summarize.ErrQuotaExceeded):
		return api.NewProviderError("summarization provider quota exceeded, try again later")
	case errors.Is(err, summarize.ErrEmptyCompletion):
		return api.NewProviderError("summarization returned no content")
	default:
		return api.NewProviderError("summarization failed")
	}
}

func mapSpeechError(err error) error {
	switch {
	case errors.Is(err, speech.ErrNotConfigured):
		return api.NewProviderConfigError("speech synthesis is not configured")
	case errors.Is(err, speech.ErrInvalidAPIKey):
		return api.NewProviderConfigError("speech provider rejected the API key")
	case errors.Is(err, speech.ErrRateLimited):
		return api.NewProviderError("speech provider rate limit exceeded, try again later")
	case errors.Is(err, speech.ErrUnknownVoice):
		return api.NewBadRequestError("the requested voice is not available")
	default:
		return api.NewProviderError("speech synthesis failed")
	}
}
