package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

type Template struct {
	Subject string
	body    *template.Template
}

// TemplateData is what a template body can reference.
type TemplateData struct {
	Name string
	Link string
}

// Renderer turns Markdown templates into sanitized HTML bodies.
type Renderer struct {
	templates map[string]Template
	markdown  goldmark.Markdown
	strict    *bluemonday.Policy
	ugc       *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		templates: make(map[string]Template),
		markdown: goldmark.New(
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
}

// Register parses body as a text/template producing Markdown.
func (r *Renderer) Register(name, subject, body string) error {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	r.templates[name] = Template{Subject: subject, body: tmpl}
	return nil
}

func (r *Renderer) MustRegister(name, subject, body string) *Renderer {
	if err := r.Register(name, subject, body); err != nil {
		panic(err)
	}
	return r
}

// Render returns the subject and HTML body of the named template.
func (r *Renderer) Render(name string, data TemplateData) (string, string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	data.Name = escapeMarkdown(r.strict.Sanitize(data.Name))

	var md bytes.Buffer
	if err := tmpl.body.Execute(&md, data); err != nil {
		return "", "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}

	var out bytes.Buffer
	if err := r.markdown.Convert(md.Bytes(), &out); err != nil {
		return "", "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return tmpl.Subject, r.ugc.Sanitize(out.String()), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"(", `\(`, ")", `\)`, "#", `\#`, "<", `\<`, ">", `\>`, "!", `\!`,
)

// escapeMarkdown keeps user supplied text from turning into links or markup.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
