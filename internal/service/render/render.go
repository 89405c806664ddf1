package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

// Renderer converts assistant markdown into HTML for web front ends.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a renderer with GFM tables, strikethrough and autolinks enabled.
// Raw HTML in model output is omitted.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// HTML renders markdown.
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// DisplayText is the text a sink shows for u. A failure that arrives after partial
// content is appended below it.
func DisplayText(u stream.Update) string {
	if u.Status != stream.StatusFailed || u.Err == "" {
		return u.Text
	}
	failure := stream.DisplayError(u.Err)
	if u.Text == "" || u.Text == failure {
		return failure
	}
	return u.Text + "\n\n" + failure
}
