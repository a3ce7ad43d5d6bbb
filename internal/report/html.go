package report

import (
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"strings"
	texttemplate "text/template"
)

// HTML renders a single self-contained page. The history is embedded as
// JSON through html/template's script escaping.
type HTML struct {
	template *htmltemplate.Template
}

func NewHTML() (*HTML, error) {
	tmpl, err := htmltemplate.New("report.html.tmpl").
		Funcs(htmltemplate.FuncMap{"statusText": statusText}).
		ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &HTML{template: tmpl}, nil
}

func (h *HTML) Format() string {
	return FormatHTML
}

func (h *HTML) Render(w io.Writer, page Page) error {
	return h.template.Execute(w, page)
}

// Markdown renders one section per run with a table of the grid
type Markdown struct {
	template *texttemplate.Template
}

func NewMarkdown() (*Markdown, error) {
	tmpl, err := texttemplate.New("report.md.tmpl").
		Funcs(texttemplate.FuncMap{"md": escapeMarkdown, "mdLink": markdownLink, "statusText": statusText}).
		ParseFS(templateFS, "templates/report.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Markdown{template: tmpl}, nil
}

func (m *Markdown) Format() string {
	return FormatMarkdown
}

func (m *Markdown) Render(w io.Writer, page Page) error {
	return m.template.Execute(w, page)
}

func statusText(c Cell) string {
	if !c.Present {
		return "N/A"
	}
	if c.Succeeded() {
		return "success"
	}
	if c.Error == "" {
		return "failure"
	}
	return "failure: " + c.Error
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"\r\n", " ",
	"\n", " ",
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", "&lt;",
	">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// markdownLink percent-encodes a relative path for use as a link target
func markdownLink(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
