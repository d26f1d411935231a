package audioproc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrTranscoderUnavailable is returned when no ffmpeg binary can be found.
var ErrTranscoderUnavailable = errors.New("ffmpeg binary not available")

// Locator finds a runnable ffmpeg binary once and caches the result.
type Locator struct {
	bundledPath string
	altPath     string
	scratchDir  string

	once   sync.Once
	path   string
	locErr error
}

// NewLocator creates an ffmpeg Locator. bundledPath and altPath may be
// empty; PATH lookup remains as the final fallback.
func NewLocator(bundledPath, altPath, scratchDir string) *Locator {
	return &Locator{
		bundledPath: bundledPath,
		altPath:     altPath,
		scratchDir:  scratchDir,
	}
}

// Locate returns the path of a runnable ffmpeg binary. Candidates are
// tried in order: the bundled path, the alternate path, then PATH.
// On serverless filesystems the deploy bundle is read-only and often
// strips the execute bit, so the binary is copied into the writable
// scratch area and chmodded before use.
func (l *Locator) Locate() (string, error) {
	l.once.Do(func() {
		l.path, l.locErr = l.locate()
	})
	return l.path, l.locErr
}

func (l *Locator) locate() (string, error) {
	for _, candidate := range []string{l.bundledPath, l.altPath} {
		if candidate == "" {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if isServerless() {
			staged, err := l.stageBinary(candidate)
			if err != nil {
				slog.Warn("staging ffmpeg binary failed", "path", candidate, "error", err)
				continue
			}
			return staged, nil
		}
		return candidate, nil
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	return "", ErrTranscoderUnavailable
}

// stageBinary copies the binary into the scratch dir and makes it executable.
func (l *Locator) stageBinary(src string) (string, error) {
	dst := filepath.Join(scratchRoot(l.scratchDir), "ffmpeg")
	if info, err := os.Stat(dst); err == nil && !info.IsDir() {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening bundled ffmpeg: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("creating staged ffmpeg: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copying ffmpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing staged ffmpeg: %w", err)
	}
	if err := os.Chmod(dst, 0o755); err != nil {
		return "", fmt.Errorf("marking ffmpeg executable: %w", err)
	}
	return dst, nil
}

// isServerless detects function-as-a-service runtimes where the deploy
// bundle is mounted read-only.
func isServerless() bool {
	if os.Getenv("NETLIFY") != "" ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" ||
		os.Getenv("AWS_EXECUTION_ENV") != "" {
		return true
	}
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	return strings.HasPrefix(cwd, "/var/task") || strings.HasPrefix(cwd, "/opt/build")
}

// scratchRoot returns the writable scratch directory, defaulting to the
// OS temp dir.
func scratchRoot(configured string) string {
	if configured != "" {
		return configured
	}
	return os.TempDir()
}
