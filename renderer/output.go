package renderer

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Terminal renders markdown for a terminal of the given width, picking a dark
// or light style from the terminal background.
func Terminal(markdown string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("cannot create terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("cannot render markdown: %w", err)
	}
	return out, nil
}

var (
	htmlConverter = goldmark.New(goldmark.WithExtensions(extension.Table))
	htmlPolicy    = bluemonday.UGCPolicy()
)

// HTML converts markdown into a sanitized HTML fragment. Names come from
// the broker's export, so the output never carries raw markup.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := htmlConverter.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("cannot convert markdown: %w", err)
	}
	return string(htmlPolicy.SanitizeBytes(buf.Bytes())), nil
}
