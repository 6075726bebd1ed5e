// Package extract recovers best-effort text from submitted documents.
//
// An extraction failure and an empty extraction are different outcomes: a
// document that was fetched but yields no readable text is a successful
// extraction with empty text, while a document that could not be fetched or
// decoded at all is an error. Callers rely on that distinction.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/gradebatch/internal/model"
)

var (
	scriptStyleRegex = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	tagRegex         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRegex  = regexp.MustCompile(`[ \t]+`)
)

// Extractor recovers text from a document reference.
type Extractor interface {
	Extract(ctx context.Context, ref model.DocumentRef) (string, error)
}

// DocumentExtractor is the default Extractor. It dispatches on the reference
// kind: remote URL, local file, or inline base64 payload.
type DocumentExtractor struct {
	client *http.Client
}

// NewDocumentExtractor creates an extractor whose remote fetches are bounded
// by timeout.
func NewDocumentExtractor(timeout time.Duration) *DocumentExtractor {
	return &DocumentExtractor{
		client: &http.Client{Timeout: timeout},
	}
}

// Extract loads the referenced document and returns its readable text.
func (e *DocumentExtractor) Extract(ctx context.Context, ref model.DocumentRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}

	var data []byte
	switch ref.Kind {
	case model.RefURL:
		fetched, err := e.fetch(ctx, ref.URL)
		if err != nil {
			return "", err
		}
		data = fetched
	case model.RefFile:
		read, err := os.ReadFile(ref.Path)
		if err != nil {
			return "", fmt.Errorf("read document %s: %w", ref.Path, err)
		}
		data = read
	case model.RefInline:
		decoded, err := base64.StdEncoding.DecodeString(ref.Data)
		if err != nil {
			return "", fmt.Errorf("decode inline document: %w", err)
		}
		data = decoded
	default:
		return "", fmt.Errorf("unknown document ref kind %q", ref.Kind)
	}

	return TextFromBytes(data), nil
}

func (e *DocumentExtractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: status code %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body from %s: %w", url, err)
	}
	return data, nil
}

// TextFromBytes converts raw document bytes to readable text. Content that
// is not valid UTF-8 (scanned images, binary formats) yields empty text
// rather than an error. HTML is reduced to its visible text.
func TextFromBytes(data []byte) string {
	if len(data) == 0 || !utf8.Valid(data) {
		return ""
	}
	text := string(data)
	if looksLikeHTML(text) {
		text = scriptStyleRegex.ReplaceAllString(text, " ")
		text = tagRegex.ReplaceAllString(text, " ")
		text = html.UnescapeString(text)
	}
	text = whitespaceRegex.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<!doctype html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "</p>") ||
		strings.Contains(lower, "</div>")
}
