package generation

import (
	"time"

	"github.com/google/uuid"
)

// summaryPrefixLen bounds how much summary text is persisted per record.
const summaryPrefixLen = 500

// UsageRecord is one completed audio generation. The monthly usage gate
// counts these records, so a row is written only after the full pipeline
// succeeds.
type UsageRecord struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	FileName  string    `json:"file_name"`
	AudioID   uuid.UUID `json:"audio_id"`
	Summary   string    `json:"summary"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// Request is the ephemeral, request-scoped description of one generation.
type Request struct {
	FileName    string
	ContentType string
	FileData    []byte

	SummaryLength string
	Language      string
	Voice         string
	Speed         float64
	MusicTrack    string
	Folder        string

	// CustomSummary, when set, is the user-edited summary from the preview
	// step. It is used verbatim; translation already happened in the preview.
	CustomSummary string

	// CustomText, when set, substitutes for extracted document text and
	// still flows through summarization and translation.
	CustomText string
}

// Result is what a successful pipeline run produces.
type Result struct {
	AudioID  uuid.UUID
	Audio    []byte
	Summary  string
	Degraded []string
}

// summaryPrefix truncates a summary for persistence.
func summaryPrefix(s string) string {
	runes := []rune(s)
	if len(runes) <= summaryPrefixLen {
		return s
	}
	return string(runes[:summaryPrefixLen])
}
