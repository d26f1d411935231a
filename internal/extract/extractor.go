package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/ledongthuc/pdf"
)

// Extraction failures the caller maps to client-facing file errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNoSelectableText  = errors.New("no selectable text in document")
	ErrCorruptedDocument = errors.New("document could not be parsed")
)

// Extractor pulls plain text out of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

type extractor struct{}

// NewExtractor returns the default PDF/DOCX extractor.
func NewExtractor() Extractor {
	return &extractor{}
}

func (e *extractor) Extract(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch {
	case isPDF(fileName, contentType):
		text, err = extractPDF(data)
	case isWordDocument(fileName, contentType):
		text, err = extractDocx(data)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoSelectableText
	}
	return text, nil
}

func isPDF(fileName, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(fileName), ".pdf")
}

func isWordDocument(fileName, contentType string) bool {
	switch contentType {
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".docx" || ext == ".doc"
}

// extractPDF walks every page's text runs. Individual pages that fail to
// parse are skipped so a partially damaged document still yields text.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorruptedDocument, err)
	}

	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		pageText, err := extractPDFPage(reader, i)
		if err != nil {
			slog.Debug("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		if pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(pageText)
		}
	}
	return sb.String(), nil
}

// extractPDFPage isolates per-page parsing. The pdf library panics on some
// malformed content streams; the recover converts that into a page skip.
func extractPDFPage(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", pageNum, r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}

	var sb strings.Builder
	var lastY float64
	for _, t := range page.Content().Text {
		if sb.Len() > 0 {
			if t.Y != lastY {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(t.S)
		lastY = t.Y
	}
	return sb.String(), nil
}

// extractDocx reads paragraph runs from a DOCX (or legacy DOC) body.
// godocx opens by path, so the upload is staged through a temp file.
func extractDocx(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "capso-doc-*.docx")
	if err != nil {
		return "", fmt.Errorf("staging document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("staging document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("staging document: %w", err)
	}

	doc, err := godocx.OpenDocument(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorruptedDocument, err)
	}

	var sb strings.Builder
	for _, child := range doc.Document.Body.Children {
		if child.Para == nil {
			continue
		}
		para := paragraphText(child.Para.GetCT())
		if para == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(para)
	}
	return sb.String(), nil
}

func paragraphText(ct *ctypes.Paragraph) string {
	var sb strings.Builder
	for _, pc := range ct.Children {
		if pc.Run == nil {
			continue
		}
		for _, rc := range pc.Run.Children {
			if rc.Text != nil {
				sb.WriteString(rc.Text.Text)
			}
		}
	}
	return sb.String()
}
