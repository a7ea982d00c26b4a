package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/blueprint/runner"
)

// ErrMarkdownWrite indicates the primary document could not be written.
var ErrMarkdownWrite = errors.New("write markdown document")

// Keys of Result.Files.
const (
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
)

// Config configures an Exporter.
type Config struct {
	// OutputDir receives the documents. Defaults to "output".
	OutputDir string

	// PDF enables best-effort PDF conversion.
	PDF bool

	// WKHTMLToPDF is the converter executable. Defaults to "wkhtmltopdf".
	WKHTMLToPDF string

	Runner runner.Runner
	Logger *slog.Logger
}

// Exporter writes composed blueprints.
type Exporter struct {
	dir       string
	pdf       bool
	converter string
	runner    runner.Runner
	logger    *slog.Logger
}

// Result lists the files produced by one export.
type Result struct {
	// Files maps a format to the absolute path written.
	Files map[string]string

	// PDFErr is set when PDF conversion was attempted and failed.
	PDFErr error
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.WKHTMLToPDF == "" {
		cfg.WKHTMLToPDF = "wkhtmltopdf"
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExecRunner()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{
		dir:       cfg.OutputDir,
		pdf:       cfg.PDF,
		converter: cfg.WKHTMLToPDF,
		runner:    cfg.Runner,
		logger:    cfg.Logger,
	}
}

// BaseName returns the file name stem used for a project.
func BaseName(projectID string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, projectID)
	return name + "_implementation_blueprint"
}

// Export writes markdown and, when enabled, a PDF rendering of it. The
// returned error is non-nil only when the markdown file could not be written.
func (e *Exporter) Export(ctx context.Context, projectID, markdown string) (*Result, error) {
	res := &Result{Files: make(map[string]string)}

	dir, err := filepath.Abs(e.dir)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrMarkdownWrite, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return res, fmt.Errorf("%w: %v", ErrMarkdownWrite, err)
	}

	base := filepath.Join(dir, BaseName(projectID))
	mdPath := base + ".md"
	if err := os.WriteFile(mdPath, []byte(markdown), 0644); err != nil {
		return res, fmt.Errorf("%w: %v", ErrMarkdownWrite, err)
	}
	res.Files[FormatMarkdown] = mdPath

	if !e.pdf {
		return res, nil
	}

	pdfPath := base + ".pdf"
	if err := e.writePDF(ctx, markdown, base+".html", pdfPath); err != nil {
		e.logger.Warn("pdf export failed", "project_id", projectID, "error", err)
		res.PDFErr = err
		return res, nil
	}
	res.Files[FormatPDF] = pdfPath
	return res, nil
}

func (e *Exporter) writePDF(ctx context.Context, markdown, htmlPath, pdfPath string) error {
	page, err := RenderHTML(markdown)
	if err != nil {
		return err
	}
	if err := os.WriteFile(htmlPath, []byte(page), 0644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	defer os.Remove(htmlPath)

	if _, err := e.runner.Run(ctx, filepath.Dir(pdfPath), e.converter,
		"--enable-local-file-access", "--quiet", htmlPath, pdfPath); err != nil {
		return fmt.Errorf("convert to pdf: %w", err)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return fmt.Errorf("converter produced no pdf: %w", err)
	}
	return nil
}
