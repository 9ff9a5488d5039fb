/*
pdf.go - HTML to PDF conversion

PURPOSE:
  Converts a rendered report into PDF bytes through an external engine
  process. Two engines are supported:

    wkhtmltopdf  pdf_wkhtmltopdf.go  binary driven over stdin/stdout
    chrome       pdf_chrome.go       headless Chrome driven by chromedp

AVAILABILITY:
  NewConverter probes the configured engine once. If the engine cannot be
  used, it logs an error and returns a nil Converter; the generator then
  produces HTML only for its whole lifetime. A failure of an engine that
  passed the probe is a ConversionError and aborts the generation.

OPTIONS:
  Page size, margins, encoding, footer and local file access are fixed by
  PDFOptions; both engines honour the same set. Every conversion runs under
  Options.Timeout.
*/
package report

import (
	"context"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/report-engine/config"
)

// Converter turns an HTML document into a PDF.
type Converter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// PDFOptions is the engine option set.
type PDFOptions struct {
	PageSize              string
	MarginMM              float64
	Encoding              string
	FooterRight           string // "[page]" and "[topage]" are substituted
	EnableLocalFileAccess bool
	Timeout               time.Duration
}

// DefaultPDFOptions returns A4, 15mm margins, UTF-8 and a "X of Y" footer.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:              "A4",
		MarginMM:              15,
		Encoding:              "UTF-8",
		FooterRight:           "[page] of [topage]",
		EnableLocalFileAccess: true,
		Timeout:               60 * time.Second,
	}
}

// OptionsFromConfig fills PDFOptions from configuration, keeping defaults
// for unset values.
func OptionsFromConfig(cfg config.PDFConfig) PDFOptions {
	opts := DefaultPDFOptions()
	if cfg.PageSize != "" {
		opts.PageSize = cfg.PageSize
	}
	if cfg.MarginMM > 0 {
		opts.MarginMM = cfg.MarginMM
	}
	if cfg.Encoding != "" {
		opts.Encoding = cfg.Encoding
	}
	if cfg.FooterRight != "" {
		opts.FooterRight = cfg.FooterRight
	}
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	opts.EnableLocalFileAccess = cfg.EnableLocalFileAccess
	return opts
}

// Engine names accepted in configuration.
const (
	EngineWkhtmltopdf = "wkhtmltopdf"
	EngineChrome      = "chrome"
	EngineNone        = "none"
)

// NewConverter probes the configured engine. When it is unusable the error
// is logged and a nil Converter is returned with a *RendererUnavailableError.
func NewConverter(ctx context.Context, cfg config.PDFConfig, workDir string, log *zap.Logger) (Converter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := OptionsFromConfig(cfg)

	var (
		conv Converter
		err  error
	)
	switch strings.ToLower(cfg.Engine) {
	case EngineWkhtmltopdf:
		conv, err = NewWkhtmltopdfConverter(ctx, cfg.BinaryPath, opts)
	case EngineChrome:
		conv, err = NewChromeConverter(cfg.BinaryPath, workDir, opts)
	case EngineNone, "":
		log.Info("pdf output disabled by configuration")
		return nil, &RendererUnavailableError{Engine: EngineNone, Reason: "disabled by configuration"}
	default:
		err = &RendererUnavailableError{Engine: cfg.Engine, Reason: "unknown engine"}
	}
	if err != nil {
		log.Error("pdf engine unavailable, reports will be generated as HTML only",
			zap.String("engine", cfg.Engine), zap.Error(err))
		return nil, err
	}

	log.Info("pdf engine ready", zap.String("engine", cfg.Engine))
	return conv, nil
}

// footerHTML turns the "[page] of [topage]" footer into Chrome's footer
// template markup.
func footerHTML(footer string, marginMM float64) string {
	text := template.HTMLEscapeString(footer)
	text = strings.ReplaceAll(text, "[page]", `<span class="pageNumber"></span>`)
	text = strings.ReplaceAll(text, "[topage]", `<span class="totalPages"></span>`)
	return `<div style="font-size:9px;width:100%;text-align:right;padding-right:` +
		formatMM(marginMM) + `;">` + text + `</div>`
}
