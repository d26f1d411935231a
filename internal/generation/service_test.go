package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capso-ai/capso/internal/api"
	"github.com/capso-ai/capso/internal/extract"
	"github.com/capso-ai/capso/internal/speech"
	"github.com/capso-ai/capso/internal/users"
)

type fakeRepo struct {
	count    int
	countErr error
	inserted []*UsageRecord
}

func (f *fakeRepo) Insert(_ context.Context, rec *UsageRecord) error {
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeRepo) CountForMonth(_ context.Context, _ uuid.UUID, _, _ int) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRepo) List(_ context.Context, _ uuid.UUID, _, _ int) ([]UsageRecord, error) {
	return nil, nil
}

func (f *fakeRepo) ListAll(_ context.Context, _ uuid.UUID) ([]UsageRecord, error) {
	return nil, nil
}

func (f *fakeRepo) FindByAudioID(_ context.Context, _, _ uuid.UUID) (*UsageRecord, error) {
	return nil, nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeSummarizer struct {
	summary        string
	err            error
	summarizeCalls int
	translateCalls int
	lastInput      string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text, _ string) (string, error) {
	f.summarizeCalls++
	f.lastInput = text
	return f.summary, f.err
}

func (f *fakeSummarizer) Translate(_ context.Context, text, lang string) string {
	f.translateCalls++
	if lang == "fr" {
		return "[fr] " + text
	}
	return text
}

type fakeSynth struct {
	audio         []byte
	err           error
	supportsSpeed bool
	requests      []speech.SynthesisRequest
}

func (f *fakeSynth) Synthesize(_ context.Context, req speech.SynthesisRequest) ([]byte, error) {
	f.requests = append(f.requests, req)
	return f.audio, f.err
}

func (f *fakeSynth) SupportsSpeed() bool { return f.supportsSpeed }

type fakePost struct {
	speedErr error
	musicErr error
	speedOut []byte
	musicOut []byte
	mixCalls int
	adjCalls int
}

func (f *fakePost) AdjustSpeed(_ context.Context, audio []byte, _ float64) ([]byte, error) {
	f.adjCalls++
	if f.speedErr != nil {
		return audio, f.speedErr
	}
	return f.speedOut, nil
}

func (f *fakePost) MixMusic(_ context.Context, audio []byte, _ string) ([]byte, error) {
	f.mixCalls++
	if f.musicErr != nil {
		return audio, f.musicErr
	}
	return f.musicOut, nil
}

type pipeline struct {
	svc   *Service
	repo  *fakeRepo
	ext   *fakeExtractor
	sum   *fakeSummarizer
	synth *fakeSynth
	post  *fakePost
}

func newPipeline() *pipeline {
	repo := &fakeRepo{}
	ext := &fakeExtractor{text: "extracted document text"}
	sum := &fakeSummarizer{summary: "a **bold** summary"}
	synth := &fakeSynth{audio: []byte("mp3-audio"), supportsSpeed: true}
	post := &fakePost{speedOut: []byte("speed-adjusted"), musicOut: []byte("music-mixed")}

	gate := NewGate(repo, 4)
	return &pipeline{
		svc:   NewService(gate, ext, sum, synth, post, repo, nil),
		repo:  repo,
		ext:   ext,
		sum:   sum,
		synth: synth,
		post:  post,
	}
}

func starterUser() *users.User {
	return &users.User{ID: uuid.New(), SubscriptionTier: users.TierStarter}
}

func proUser() *users.User {
	return &users.User{ID: uuid.New(), SubscriptionTier: users.TierPro}
}

func basicRequest() *Request {
	return &Request{
		FileName:      "report.pdf",
		ContentType:   "application/pdf",
		FileData:      []byte("%PDF"),
		SummaryLength: "medium",
		Language:      "en",
		Voice:         "sarah",
	}
}

func TestGenerate_StarterAtLimitRejectedBeforeProviderCalls(t *testing.T) {
	p := newPipeline()
	p.repo.count = 4

	_, err := p.svc.Generate(context.Background(), starterUser(), basicRequest())

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.KindTierLimit, appErr.Kind)
	assert.Equal(t, 403, appErr.Code)

	assert.Zero(t, p.ext.calls)
	assert.Zero(t, p.sum.summarizeCalls)
	assert.Empty(t, p.synth.requests)
}

func TestGenerate_ProNeverCountRejected(t *testing.T) {
	p := newPipeline()
	p.repo.count = 10000

	result, err := p.svc.Generate(context.Background(), proUser(), basicRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Audio)
}

func TestGenerate_StarterSpeedControlRejected(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.Speed = 1.5

	_, err := p.svc.Generate(context.Background(), starterUser(), req)

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.KindTierLimit, appErr.Kind)
}

func TestGenerate_StarterFolderRejected(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.Folder = "work"

	_, err := p.svc.Generate(context.Background(), starterUser(), req)

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.KindTierLimit, appErr.Kind)
}

func TestGenerate_SuccessWritesExactlyOneRecord(t *testing.T) {
	p := newPipeline()
	p.repo.count = 2

	result, err := p.svc.Generate(context.Background(), starterUser(), basicRequest())
	require.NoError(t, err)

	require.Len(t, p.repo.inserted, 1)
	rec := p.repo.inserted[0]
	assert.Equal(t, "report.pdf", rec.FileName)
	assert.Equal(t, result.AudioID, rec.AudioID)
	assert.NotZero(t, rec.Month)
	assert.NotZero(t, rec.Year)
}

func TestGenerate_FailureWritesNoRecord(t *testing.T) {
	p := newPipeline()
	p.synth.err = speech.ErrRateLimited

	_, err := p.svc.Generate(context.Background(), starterUser(), basicRequest())
	require.Error(t, err)
	assert.Empty(t, p.repo.inserted)
}

func TestGenerate_CustomSummaryBypassesTextStage(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.CustomSummary = "my edited summary"

	result, err := p.svc.Generate(context.Background(), starterUser(), req)
	require.NoError(t, err)
	assert.Equal(t, "my edited summary", result.Summary)
	assert.Zero(t, p.ext.calls)
	assert.Zero(t, p.sum.summarizeCalls)
	assert.Zero(t, p.sum.translateCalls)
}

func TestSummary_CustomTextReplacesExtractionOnly(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.FileData = nil
	req.Language = "fr"
	req.CustomText = "raw pasted document text"

	summary, err := p.svc.Summary(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, p.ext.calls)
	assert.Equal(t, 1, p.sum.summarizeCalls)
	assert.Equal(t, "raw pasted document text", p.sum.lastInput)
	assert.Equal(t, 1, p.sum.translateCalls)
	assert.Equal(t, "[fr] a **bold** summary", summary)
}

func TestGenerate_MarkdownStrippedBeforeSynthesis(t *testing.T) {
	p := newPipeline()

	_, err := p.svc.Generate(context.Background(), starterUser(), basicRequest())
	require.NoError(t, err)

	require.Len(t, p.synth.requests, 1)
	assert.Equal(t, "a bold summary", p.synth.requests[0].Text)
}

func TestGenerate_RemoteSpeedWhenSupported(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.Speed = 1.5

	_, err := p.svc.Generate(context.Background(), proUser(), req)
	require.NoError(t, err)

	require.Len(t, p.synth.requests, 1)
	assert.Equal(t, 1.5, p.synth.requests[0].Speed)
	assert.Zero(t, p.post.adjCalls)
}

func TestGenerate_LocalSpeedFallbackWhenUnsupported(t *testing.T) {
	p := newPipeline()
	p.synth.supportsSpeed = false
	req := basicRequest()
	req.Speed = 1.5

	result, err := p.svc.Generate(context.Background(), proUser(), req)
	require.NoError(t, err)

	require.Len(t, p.synth.requests, 1)
	assert.Zero(t, p.synth.requests[0].Speed)
	assert.Equal(t, 1, p.post.adjCalls)
	assert.Equal(t, []byte("speed-adjusted"), result.Audio)
}

func TestGenerate_SpeedDegradeKeepsOriginalAudio(t *testing.T) {
	p := newPipeline()
	p.synth.supportsSpeed = false
	p.post.speedErr = errors.New("transcoder missing")
	req := basicRequest()
	req.Speed = 1.5

	result, err := p.svc.Generate(context.Background(), proUser(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-audio"), result.Audio)
	assert.Contains(t, result.Degraded, "speed")
	require.Len(t, p.repo.inserted, 1)
}

func TestGenerate_MusicDegradeKeepsOriginalAudio(t *testing.T) {
	p := newPipeline()
	p.post.musicErr = errors.New("track missing")
	req := basicRequest()
	req.MusicTrack = "calm"

	result, err := p.svc.Generate(context.Background(), starterUser(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-audio"), result.Audio)
	assert.Contains(t, result.Degraded, "music")
}

func TestGenerate_MusicMixApplied(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.MusicTrack = "calm"

	result, err := p.svc.Generate(context.Background(), starterUser(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("music-mixed"), result.Audio)
	assert.Equal(t, 1, p.post.mixCalls)
}

func TestGenerate_ImageOnlyDocumentIsFileError(t *testing.T) {
	p := newPipeline()
	p.ext.err = extract.ErrNoSelectableText

	_, err := p.svc.Generate(context.Background(), starterUser(), basicRequest())

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.KindFile, appErr.Kind)
	assert.Equal(t, 400, appErr.Code)
	assert.Empty(t, p.synth.requests)
}

func TestSummary_TranslatesForNonEnglish(t *testing.T) {
	p := newPipeline()
	req := basicRequest()
	req.Language = "fr"

	summary, err := p.svc.Summary(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "[fr] a **bold** summary", summary)
}

func TestCurrentUsage(t *testing.T) {
	p := newPipeline()
	p.repo.count = 3

	usage, err := p.svc.gate.CurrentUsage(context.Background(), starterUser())
	require.NoError(t, err)
	assert.Equal(t, 3, usage.Current)
	assert.Equal(t, 4, usage.Limit)
	assert.Equal(t, 1, usage.Remaining)
	assert.False(t, usage.Unlimited)

	proUsage, err := p.svc.gate.CurrentUsage(context.Background(), proUser())
	require.NoError(t, err)
	assert.True(t, proUsage.Unlimited)
	assert.Zero(t, proUsage.Limit)
}
