package extract

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

func TestExtractPlainText(t *testing.T) {
	t.Parallel()

	got, err := New().Extract(context.Background(), []byte("  Jane Doe\nGo Engineer  \n"), "resume.txt")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Jane Doe\nGo Engineer" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractRejectsBadInput(t *testing.T) {
	t.Parallel()

	e := New()
	cases := []struct {
		name     string
		data     []byte
		filename string
	}{
		{"empty", nil, "resume.txt"},
		{"unsupported extension", []byte("data"), "resume.pdf"},
		{"binary payload", []byte{0xff, 0xfe, 0x00}, "resume.txt"},
		{"whitespace only", []byte("   \n\t  "), "resume.md"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.Extract(context.Background(), tc.data, tc.filename)
			if !errors.Is(err, contractx.ErrDocumentExtraction) {
				t.Fatalf("expected ErrDocumentExtraction, got %v", err)
			}
		})
	}
}
