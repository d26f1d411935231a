package audioproc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capso-ai/capso/internal/config"
)

// Track names come from user input and end up in file paths.
var safeTrackName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Speech and music levels for the mix, and the loop size cap that lets
// a short track repeat under arbitrarily long narration.
const mixFilterGraph = "[0:a]volume=0.7[speech];" +
	"[1:a]volume=0.15,aloop=loop=-1:size=2e+09[music];" +
	"[speech][music]amix=inputs=2:duration=first:dropout_transition=2[mixed]"

// Processor applies local post-processing (tempo, background music) to
// synthesized audio. All failures degrade: the methods always hand back
// playable audio, returning the unmodified input alongside the error.
type Processor struct {
	exec         Executor
	locator      *Locator
	scratchDir   string
	musicDirs    []string
	publicOrigin string
	mixTimeout   time.Duration
	http         *http.Client
}

// NewProcessor creates an audio Processor. publicOrigin is the app's own
// public base URL, used to fetch music assets absent from local disk.
func NewProcessor(exec Executor, locator *Locator, cfg config.AudioConfig, publicOrigin string) *Processor {
	return &Processor{
		exec:         exec,
		locator:      locator,
		scratchDir:   scratchRoot(cfg.ScratchDir),
		musicDirs:    cfg.MusicDirs,
		publicOrigin: strings.TrimRight(publicOrigin, "/"),
		mixTimeout:   cfg.MixTimeout,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// AdjustSpeed re-times the audio by the given multiplier. Used when the
// synthesis provider cannot apply speed remotely. On any failure the
// original buffer is returned with the error.
func (p *Processor) AdjustSpeed(ctx context.Context, audio []byte, speed float64) ([]byte, error) {
	if math.Abs(speed-1.0) < 1e-9 || speed == 0 {
		return audio, nil
	}

	ffmpeg, err := p.locator.Locate()
	if err != nil {
		return audio, err
	}

	in, out, cleanup, err := p.scratchPair("speed")
	if err != nil {
		return audio, err
	}
	defer cleanup()

	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return audio, fmt.Errorf("writing scratch audio: %w", err)
	}

	_, err = p.exec.Execute(ctx, ffmpeg,
		"-i", in,
		"-filter:a", atempoFilter(speed),
		"-y", out,
	)
	if err != nil {
		return audio, fmt.Errorf("adjusting speed: %w", err)
	}

	adjusted, err := os.ReadFile(out)
	if err != nil || len(adjusted) == 0 {
		return audio, fmt.Errorf("reading adjusted audio: %w", err)
	}
	return adjusted, nil
}

// MixMusic blends a looped background track under the narration. The
// watchdog timeout bounds the external process; on any failure the
// original buffer is returned with the error.
func (p *Processor) MixMusic(ctx context.Context, speech []byte, track string) ([]byte, error) {
	if track == "" || track == "none" {
		return speech, nil
	}

	ffmpeg, err := p.locator.Locate()
	if err != nil {
		return speech, err
	}

	musicPath, musicCleanup, err := p.resolveMusic(ctx, track)
	if err != nil {
		return speech, err
	}
	defer musicCleanup()

	in, out, cleanup, err := p.scratchPair("mix")
	if err != nil {
		return speech, err
	}
	defer cleanup()

	if err := os.WriteFile(in, speech, 0o600); err != nil {
		return speech, fmt.Errorf("writing scratch audio: %w", err)
	}

	mixCtx := ctx
	if p.mixTimeout > 0 {
		var cancel context.CancelFunc
		mixCtx, cancel = context.WithTimeout(ctx, p.mixTimeout)
		defer cancel()
	}

	_, err = p.exec.Execute(mixCtx, ffmpeg,
		"-i", in,
		"-i", musicPath,
		"-filter_complex", mixFilterGraph,
		"-map", "[mixed]",
		"-c:a", "libmp3lame",
		"-y", out,
	)
	if err != nil {
		return speech, fmt.Errorf("mixing background music: %w", err)
	}

	mixed, err := os.ReadFile(out)
	if err != nil || len(mixed) == 0 {
		return speech, fmt.Errorf("reading mixed audio: %w", err)
	}
	return mixed, nil
}

// resolveMusic finds the track in the candidate directories, downloading
// it from the public origin as a last resort. The cleanup func removes
// the downloaded copy only; local assets are left alone.
func (p *Processor) resolveMusic(ctx context.Context, track string) (string, func(), error) {
	noop := func() {}
	if !safeTrackName.MatchString(track) {
		return "", noop, fmt.Errorf("invalid music track name %q", track)
	}

	fileName := track + ".mp3"
	for _, dir := range p.musicDirs {
		candidate := filepath.Join(dir, fileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, noop, nil
		}
	}

	if p.publicOrigin == "" {
		return "", noop, fmt.Errorf("music track %q not found locally", track)
	}
	return p.downloadMusic(ctx, fileName)
}

func (p *Processor) downloadMusic(ctx context.Context, fileName string) (string, func(), error) {
	noop := func() {}
	url := p.publicOrigin + "/background-music/" + fileName

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", noop, fmt.Errorf("building music download request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("downloading music track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("downloading music track: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return "", noop, fmt.Errorf("creating scratch dir: %w", err)
	}
	dst := filepath.Join(p.scratchDir, "music-"+uuid.NewString()+".mp3")
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", noop, fmt.Errorf("creating music scratch file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", noop, fmt.Errorf("saving music track: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", noop, fmt.Errorf("saving music track: %w", err)
	}

	slog.Debug("downloaded background music", "url", url)
	return dst, func() { os.Remove(dst) }, nil
}

// scratchPair allocates input and output scratch paths sharing one
// cleanup that removes both regardless of outcome.
func (p *Processor) scratchPair(prefix string) (in, out string, cleanup func(), err error) {
	id := uuid.NewString()
	in = filepath.Join(p.scratchDir, fmt.Sprintf("%s-%s-in.mp3", prefix, id))
	out = filepath.Join(p.scratchDir, fmt.Sprintf("%s-%s-out.mp3", prefix, id))
	cleanup = func() {
		os.Remove(in)
		os.Remove(out)
	}
	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return "", "", func() {}, fmt.Errorf("creating scratch dir: %w", err)
	}
	return in, out, cleanup, nil
}
