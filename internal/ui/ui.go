package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Pages renders the embedded HTML pages.
type Pages struct {
	templates *template.Template
}

func NewPages() (*Pages, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded templates: %w", err)
	}
	return &Pages{templates: templates}, nil
}

func (p *Pages) Render(w io.Writer, name string, data any) error {
	return p.templates.ExecuteTemplate(w, name+".html", data)
}
