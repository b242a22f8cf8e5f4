package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// Metadata is source-level information shared by all passages of one file.
type Metadata struct {
	SourceFile  string
	Title       string
	ContentType string
}

// Passage is one loadable unit of text with its position in the source.
// Plain files yield a single passage; structured ones yield one per
// heading or page.
type Passage struct {
	Text    string
	Section string
	Page    int
}

// Loader reads supported document formats into passages.
type Loader struct {
	converterURL string
	client       *http.Client
	logger       log.Logger
}

// NewLoader creates a loader. converterURL points at the PDF-to-markdown
// converter service and may be empty, in which case PDF files are rejected.
func NewLoader(converterURL string, logger log.Logger) *Loader {
	return &Loader{
		converterURL: converterURL,
		client:       &http.Client{},
		logger:       logger,
	}
}

// SupportedExtensions lists the file types Load accepts.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".html", ".htm", ".pdf"}
}

// Load reads one file into metadata plus passages.
func (l *Loader) Load(ctx context.Context, path string) (Metadata, []Passage, error) {
	meta := Metadata{
		SourceFile: filepath.Base(path),
		Title:      titleFromPath(path),
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		meta.ContentType = strings.TrimPrefix(ext, ".")
		passages, err := l.loadText(path)
		return meta, passages, err
	case ".html", ".htm":
		meta.ContentType = "html"
		title, passages, err := l.loadHTML(path)
		if title != "" {
			meta.Title = title
		}
		return meta, passages, err
	case ".pdf":
		meta.ContentType = "pdf"
		passages, err := l.loadPDF(ctx, path)
		return meta, passages, err
	default:
		return meta, nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func (l *Loader) loadText(path string) ([]Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return splitByHeadings(string(data)), nil
}

// loadHTML extracts readable text, dropping script, style and noscript
// subtrees. The document title, when present, overrides the filename-derived
// one.
func (l *Loader) loadHTML(path string) (string, []Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	doc.Find("script, style, noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})
	text := sb.String()
	if text == "" {
		text = doc.Text()
	}

	return title, []Passage{{Text: text}}, nil
}

// loadPDF validates the file locally, then sends it to the converter
// service for text extraction. The converter returns markdown, which is
// split into passages by heading.
func (l *Loader) loadPDF(ctx context.Context, path string) ([]Passage, error) {
	if l.converterURL == "" {
		return nil, fmt.Errorf("PDF support requires a converter service, none configured")
	}

	if err := api.ValidateFile(path, api.LoadConfiguration()); err != nil {
		return nil, fmt.Errorf("invalid PDF %s: %w", path, err)
	}

	md, err := l.convertPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	return splitByHeadings(md), nil
}

type converterResponse struct {
	Document struct {
		MDContent string `json:"md_content"`
	} `json:"document"`
}

func (l *Loader) convertPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("building converter request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building converter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.converterURL, &buf)
	if err != nil {
		return "", fmt.Errorf("building converter request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling converter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("converter returned %d: %s", resp.StatusCode, body)
	}

	var cr converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding converter response: %w", err)
	}
	if cr.Document.MDContent == "" {
		return "", fmt.Errorf("converter returned no text for %s", path)
	}
	return cr.Document.MDContent, nil
}

// splitByHeadings turns markdown-ish text into passages, one per top-level
// or second-level heading. Text before the first heading becomes an
// untitled passage.
func splitByHeadings(text string) []Passage {
	var passages []Passage
	var current strings.Builder
	section := ""

	flush := func() {
		if body := strings.TrimSpace(current.String()); body != "" {
			passages = append(passages, Passage{Text: body, Section: section})
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if heading, ok := strings.CutPrefix(trimmed, "## "); ok {
			flush()
			section = strings.TrimSpace(heading)
			continue
		}
		if heading, ok := strings.CutPrefix(trimmed, "# "); ok {
			flush()
			section = strings.TrimSpace(heading)
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	if passages == nil {
		return nil
	}
	return passages
}

// titleFromPath derives a readable title from a file name.
func titleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
