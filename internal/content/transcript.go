package content

import (
	"html/template"
	"io"
	"strings"
	"time"

	"chatty/internal/models"

	"github.com/pkg/errors"
)

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{range .Entries}}<div class="message{{if .Placeholder}} error{{end}}">
<div class="header"><strong>{{.Author}}</strong> <time>{{.Time}}</time></div>
{{if .Image}}<img src="{{.Image}}" alt="Attachment">{{end}}
{{.Body}}
</div>
{{end}}</body>
</html>
`))

type transcriptEntry struct {
	Author      string
	Time        string
	Image       template.URL
	Body        template.HTML
	Placeholder bool
}

// ExportHTML writes messages as a standalone HTML page. name resolves the
// display name of each author.
func ExportHTML(w io.Writer, title string, messages []models.Message, name func(models.Participant) string) error {
	entries := make([]transcriptEntry, 0, len(messages))
	for _, m := range messages {
		body, err := RenderMarkdown(m.Text)
		if err != nil {
			return errors.Wrapf(err, "render message %s", m.ID)
		}
		entries = append(entries, transcriptEntry{
			Author:      name(m.Sender),
			Time:        m.CreatedAt.Format(time.DateTime),
			Image:       safeImage(m.Image),
			Body:        template.HTML(body),
			Placeholder: m.Placeholder,
		})
	}

	return transcriptTmpl.Execute(w, struct {
		Title   string
		Entries []transcriptEntry
	}{Title: title, Entries: entries})
}

func safeImage(ref string) template.URL {
	switch {
	case strings.HasPrefix(ref, "data:image/"),
		strings.HasPrefix(ref, "https://"),
		strings.HasPrefix(ref, "http://"):
		return template.URL(ref)
	}
	return ""
}
