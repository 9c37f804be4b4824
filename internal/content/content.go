package content

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy   = bluemonday.UGCPolicy()
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// Message text from peers and the assistant is untrusted and goes through it
// before being rendered.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// RenderMarkdown converts message text to sanitized HTML. Assistant replies
// are usually markdown; plain peer text renders as a paragraph.
func RenderMarkdown(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return Sanitize(buf.String()), nil
}
