package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// CLIEngine runs the tesseract binary.
type CLIEngine struct {
	bin         string
	langs       string
	tessdataDir string
	runner      Runner
	logger      *slog.Logger
}

// NewCLIEngine uses runner for process execution; nil means os/exec.
func NewCLIEngine(cfg Config, runner Runner, logger *slog.Logger) *CLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	bin := cfg.Tesseract
	if bin == "" {
		bin = "tesseract"
	}
	langs := cfg.Languages
	if langs == "" {
		langs = "eng+ara"
	}
	return &CLIEngine{bin: bin, langs: langs, tessdataDir: cfg.TessdataDir, runner: runner, logger: logger}
}

// RecognizeFile runs: tesseract <file> stdout -l <langs>
func (c *CLIEngine) RecognizeFile(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", c.langs}
	if c.tessdataDir != "" {
		args = append(args, "--tessdata-dir", c.tessdataDir)
	}
	out, errb, err := c.runner.Run(ctx, c.bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

func (c *CLIEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	f, err := os.CreateTemp("", "ocr-page-*.png")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return c.RecognizeFile(ctx, f.Name())
}

// PopplerRasterizer renders pages with pdftoppm and counts them with pdfcpu.
type PopplerRasterizer struct {
	bin    string
	runner Runner
	logger *slog.Logger
	count  func(path string) (int, error)
}

func NewPopplerRasterizer(cfg Config, runner Runner, logger *slog.Logger) *PopplerRasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	bin := cfg.Pdftoppm
	if bin == "" {
		bin = "pdftoppm"
	}
	return &PopplerRasterizer{bin: bin, runner: runner, logger: logger, count: api.PageCountFile}
}

func (p *PopplerRasterizer) PageCount(_ context.Context, path string) (int, error) {
	n, err := p.count(path)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}

// RenderPage runs: pdftoppm -r <dpi> -png -f N -l N -singlefile <in.pdf> <tmp/page>
func (p *PopplerRasterizer) RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "ocr-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	page := strconv.Itoa(index + 1)
	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := p.runner.Run(ctx, p.bin,
		"-r", strconv.Itoa(dpi), "-png", "-f", page, "-l", page, "-singlefile", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %s: %w", page, err)
	}
	return img, nil
}
