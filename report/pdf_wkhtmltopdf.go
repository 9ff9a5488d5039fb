package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// WkhtmltopdfConverter runs the wkhtmltopdf binary, feeding HTML on stdin
// and reading the PDF from stdout.
type WkhtmltopdfConverter struct {
	Path    string
	Options PDFOptions
}

// NewWkhtmltopdfConverter locates the binary (PATH lookup when path is
// empty) and checks that it runs.
func NewWkhtmltopdfConverter(ctx context.Context, path string, opts PDFOptions) (*WkhtmltopdfConverter, error) {
	if path == "" {
		found, err := exec.LookPath(EngineWkhtmltopdf)
		if err != nil {
			return nil, &RendererUnavailableError{Engine: EngineWkhtmltopdf, Reason: err.Error()}
		}
		path = found
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, path, "-V").CombinedOutput(); err != nil {
		return nil, &RendererUnavailableError{
			Engine: EngineWkhtmltopdf,
			Reason: strings.TrimSpace(fmt.Sprintf("%v %s", err, out)),
		}
	}
	return &WkhtmltopdfConverter{Path: path, Options: opts}, nil
}

// Args returns the command line options derived from Options.
func (c *WkhtmltopdfConverter) Args() []string {
	margin := formatMM(c.Options.MarginMM)
	args := []string{
		"--quiet",
		"--page-size", c.Options.PageSize,
		"--margin-top", margin,
		"--margin-right", margin,
		"--margin-bottom", margin,
		"--margin-left", margin,
		"--encoding", c.Options.Encoding,
	}
	if c.Options.FooterRight != "" {
		args = append(args, "--footer-right", c.Options.FooterRight)
	}
	if c.Options.EnableLocalFileAccess {
		args = append(args, "--enable-local-file-access")
	}
	return args
}

// Convert renders html to PDF. The call is bounded by Options.Timeout.
func (c *WkhtmltopdfConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	if c.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Options.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, append(c.Args(), "-", "-")...)
	cmd.Stdin = strings.NewReader(html)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ConversionError{
			Engine:  EngineWkhtmltopdf,
			Timeout: errors.Is(ctxErr, context.DeadlineExceeded),
			Err:     ctxErr,
		}
	}
	if err != nil {
		return nil, &ConversionError{Engine: EngineWkhtmltopdf, Output: trimOutput(stderr.String()), Err: err}
	}
	if stdout.Len() == 0 {
		return nil, &ConversionError{Engine: EngineWkhtmltopdf, Output: trimOutput(stderr.String()), Err: errors.New("empty output")}
	}
	return stdout.Bytes(), nil
}

func formatMM(mm float64) string {
	return strconv.FormatFloat(mm, 'f', -1, 64) + "mm"
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
