package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// TemplateName is the file the renderer looks for in the template directory.
const TemplateName = "investor_report_template.html"

//go:embed templates/investor_report_template.html
var defaultTemplates embed.FS

// Date layouts bound into the template.
const (
	GeneratedDateLayout = "02 January 2006"
	ReportPeriodLayout  = "January 2006"
)

// Renderer binds formatted investor data into the report template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the report template from dir. When dir is empty or
// holds no template, the embedded default is used.
func NewRenderer(dir string) (*Renderer, error) {
	if dir != "" {
		path := filepath.Join(dir, TemplateName)
		if _, err := os.Stat(path); err == nil {
			tmpl, err := template.New(TemplateName).Option("missingkey=error").ParseFiles(path)
			if err != nil {
				return nil, &TemplateError{Template: path, Err: err}
			}
			return &Renderer{tmpl: tmpl}, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat template: %w", err)
		}
	}

	tmpl, err := template.New(TemplateName).Option("missingkey=error").
		ParseFS(defaultTemplates, "templates/"+TemplateName)
	if err != nil {
		return nil, &TemplateError{Template: TemplateName, Err: err}
	}
	return &Renderer{tmpl: tmpl}, nil
}

// NewRendererFromString parses tmpl as the report template.
func NewRendererFromString(tmpl string) (*Renderer, error) {
	t, err := template.New(TemplateName).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, &TemplateError{Template: TemplateName, Err: err}
	}
	return &Renderer{tmpl: t}, nil
}

// Render executes the template with d. Any fault, including a field the
// template references but d lacks, is returned as a *TemplateError.
func (r *Renderer) Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, map[string]any(d)); err != nil {
		return "", &TemplateError{Template: r.tmpl.Name(), Err: err}
	}
	return buf.String(), nil
}

// WithReportDates adds generated_date, report_period and report_id to a
// copy of d.
func WithReportDates(d Data, now time.Time, id ReportID) Data {
	out := d.Clone()
	out[FieldGeneratedDate] = now.Format(GeneratedDateLayout)
	out[FieldReportPeriod] = now.Format(ReportPeriodLayout)
	out[FieldReportID] = string(id)
	return out
}
