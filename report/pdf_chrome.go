package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// chromeCandidates are looked up on PATH when no binary is configured.
var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// paperSizes in inches, width x height.
var paperSizes = map[string][2]float64{
	"A3":     {11.69, 16.54},
	"A4":     {8.27, 11.69},
	"A5":     {5.83, 8.27},
	"LETTER": {8.5, 11},
	"LEGAL":  {8.5, 14},
}

// ChromeConverter prints HTML to PDF with a headless Chrome process. The
// document is written to WorkDir first and loaded over file://, so assets
// referenced relative to it resolve.
type ChromeConverter struct {
	ExecPath string
	WorkDir  string
	Options  PDFOptions
}

// NewChromeConverter resolves the Chrome executable.
func NewChromeConverter(execPath, workDir string, opts PDFOptions) (*ChromeConverter, error) {
	if execPath != "" {
		if _, err := os.Stat(execPath); err != nil {
			return nil, &RendererUnavailableError{Engine: EngineChrome, Reason: err.Error()}
		}
	} else {
		for _, name := range chromeCandidates {
			if found, err := exec.LookPath(name); err == nil {
				execPath = found
				break
			}
		}
		if execPath == "" {
			return nil, &RendererUnavailableError{Engine: EngineChrome, Reason: "no chrome executable on PATH"}
		}
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &ChromeConverter{ExecPath: execPath, WorkDir: workDir, Options: opts}, nil
}

// Convert renders html to PDF. The call is bounded by Options.Timeout.
func (c *ChromeConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
		return nil, &ConversionError{Engine: EngineChrome, Err: err}
	}
	path, err := filepath.Abs(filepath.Join(c.WorkDir, ".render-"+uuid.NewString()+".html"))
	if err != nil {
		return nil, &ConversionError{Engine: EngineChrome, Err: err}
	}
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		return nil, &ConversionError{Engine: EngineChrome, Err: err}
	}
	defer os.Remove(path)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.ExecPath),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("allow-file-access-from-files", c.Options.EnableLocalFileAccess),
	)

	if c.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Options.Timeout)
		defer cancel()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	width, height := c.paper()
	margin := c.Options.MarginMM / 25.4
	footer := footerHTML(c.Options.FooterRight, c.Options.MarginMM)

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate((&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithMarginTop(margin).
				WithMarginRight(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithDisplayHeaderFooter(c.Options.FooterRight != "").
				WithHeaderTemplate("<span></span>").
				WithFooterTemplate(footer).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ConversionError{
			Engine:  EngineChrome,
			Timeout: errors.Is(ctxErr, context.DeadlineExceeded),
			Err:     ctxErr,
		}
	}
	if err != nil {
		return nil, &ConversionError{Engine: EngineChrome, Err: err}
	}
	if len(pdf) == 0 {
		return nil, &ConversionError{Engine: EngineChrome, Err: fmt.Errorf("empty output")}
	}
	return pdf, nil
}

func (c *ChromeConverter) paper() (float64, float64) {
	if size, ok := paperSizes[strings.ToUpper(c.Options.PageSize)]; ok {
		return size[0], size[1]
	}
	a4 := paperSizes["A4"]
	return a4[0], a4[1]
}
