package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

const maxDocumentBytes = 4 << 20

// PlainText turns uploaded resume documents into prompt-ready text. It
// accepts text-flavored files by extension and rejects binary payloads
// rather than guessing at their encoding.
type PlainText struct{}

var _ contractx.DocumentExtractor = PlainText{}

func New() PlainText {
	return PlainText{}
}

func (PlainText) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", fmt.Errorf("%w: document is empty", contractx.ErrDocumentExtraction)
	}
	if len(data) > maxDocumentBytes {
		return "", fmt.Errorf("%w: document exceeds %d bytes", contractx.ErrDocumentExtraction, maxDocumentBytes)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case "", ".txt", ".md", ".markdown", ".rst":
	default:
		return "", fmt.Errorf("%w: unsupported document type %q", contractx.ErrDocumentExtraction, ext)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: document is not valid utf-8", contractx.ErrDocumentExtraction)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: document has no text content", contractx.ErrDocumentExtraction)
	}
	return text, nil
}
