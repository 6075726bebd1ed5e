package extract

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/gradebatch/internal/model"
)

func newTestExtractor() *DocumentExtractor {
	return NewDocumentExtractor(5 * time.Second)
}

func TestExtractFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1. 3/4\n2. 5/8"))
	}))
	t.Cleanup(srv.Close)

	text, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefURL,
		URL:  srv.URL,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "3/4") {
		t.Errorf("expected document text, got %q", text)
	}
}

func TestExtractFromURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefURL,
		URL:  srv.URL,
	})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestExtractFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submission.txt")
	if err := os.WriteFile(path, []byte("my answers"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	text, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefFile,
		Path: path,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "my answers" {
		t.Errorf("expected 'my answers', got %q", text)
	}
}

func TestExtractFromMissingFile(t *testing.T) {
	_, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefFile,
		Path: filepath.Join(t.TempDir(), "missing.txt"),
	})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractFromInline(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("inline answers"))
	text, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefInline,
		Data: data,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "inline answers" {
		t.Errorf("expected 'inline answers', got %q", text)
	}
}

func TestExtractFromInvalidInline(t *testing.T) {
	_, err := newTestExtractor().Extract(context.Background(), model.DocumentRef{
		Kind: model.RefInline,
		Data: "not base64!!!",
	})
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestExtractInvalidRef(t *testing.T) {
	tests := []struct {
		name string
		ref  model.DocumentRef
	}{
		{"unknown kind", model.DocumentRef{Kind: "carrier-pigeon"}},
		{"url without url", model.DocumentRef{Kind: model.RefURL}},
		{"file without path", model.DocumentRef{Kind: model.RefFile}},
		{"inline without data", model.DocumentRef{Kind: model.RefInline}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestExtractor().Extract(context.Background(), tt.ref); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTextFromBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, ""},
		{"plain text", []byte("hello world"), "hello world"},
		{"binary is empty success", []byte{0xff, 0xfe, 0x00, 0x89}, ""},
		{
			"html stripped",
			[]byte("<html><body><p>Answer: <b>42</b></p><script>alert(1)</script></body></html>"),
			"Answer: 42",
		},
		{
			"entities unescaped",
			[]byte("<html><body><p>3 &lt; 4 &amp; 5 &gt; 2</p></body></html>"),
			"3 < 4 & 5 > 2",
		},
		{
			"blank lines dropped",
			[]byte("line one\n\n   \nline two"),
			"line one\nline two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextFromBytes(tt.data); got != tt.want {
				t.Errorf("TextFromBytes() = %q, want %q", got, tt.want)
			}
		})
	}
}
