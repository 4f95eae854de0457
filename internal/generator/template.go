package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// Error codes reported by the template generator.
const (
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeInvalidData      = "INVALID_DATA"
	CodeRenderFailed     = "RENDER_FAILED"
)

const htmlContentType = "text/html; charset=utf-8"

// builtinTemplates are registered by NewTemplateGenerator.
var builtinTemplates = map[string]string{
	"invoice": `<!DOCTYPE html>
<html><head><title>Invoice {{.number}}</title></head>
<body>
<h1>Invoice {{.number}}</h1>
<p>Bill to: {{.customer}}</p>
<table>
{{range .lines}}<tr><td>{{.description}}</td><td>{{.amount}}</td></tr>
{{end}}</table>
<p>Total: {{.total}}</p>
</body></html>
`,
	"letter": `<!DOCTYPE html>
<html><head><title>{{.subject}}</title></head>
<body>
<p>Dear {{.recipient}},</p>
<p>{{.body}}</p>
<p>{{.sender}}</p>
</body></html>
`,
}

// TemplateGenerator renders HTML documents in process from named templates.
type TemplateGenerator struct {
	templates map[string]*template.Template
}

// Compile-time interface satisfaction check.
var _ Generator = (*TemplateGenerator)(nil)

// NewTemplateGenerator creates a generator with the built-in templates.
func NewTemplateGenerator() *TemplateGenerator {
	g := &TemplateGenerator{templates: make(map[string]*template.Template)}
	for name, text := range builtinTemplates {
		g.templates[name] = template.Must(template.New(name).Option("missingkey=zero").Parse(text))
	}
	return g
}

// AddTemplate parses text and registers it under name, replacing any
// existing template with that name. It must not be called concurrently with
// Generate.
func (g *TemplateGenerator) AddTemplate(name, text string) error {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %q: %w", name, err)
	}
	g.templates[name] = t
	return nil
}

// Generate renders spec.Data into the named template.
func (g *TemplateGenerator) Generate(ctx context.Context, spec Spec) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	t, ok := g.templates[spec.Template]
	if !ok {
		return Result{}, &Error{Code: CodeTemplateNotFound, Message: fmt.Sprintf("template %q does not exist", spec.Template)}
	}

	data := map[string]any{}
	if len(bytes.TrimSpace(spec.Data)) > 0 {
		if err := json.Unmarshal(spec.Data, &data); err != nil {
			return Result{}, &Error{Code: CodeInvalidData, Message: err.Error()}
		}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return Result{}, &Error{Code: CodeRenderFailed, Message: err.Error()}
	}

	fileName := spec.FileName
	if fileName == "" {
		fileName = spec.Template + ".html"
	} else if !strings.Contains(fileName, ".") {
		fileName += ".html"
	}

	return Result{
		FileName:    fileName,
		ContentType: htmlContentType,
		Content:     buf.Bytes(),
	}, nil
}

// Capabilities reports the registered template names.
func (g *TemplateGenerator) Capabilities() Capabilities {
	names := make([]string, 0, len(g.templates))
	for name := range g.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return Capabilities{
		Name:      "template",
		Templates: names,
	}
}
