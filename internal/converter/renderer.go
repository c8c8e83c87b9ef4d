package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const defaultRenderTimeout = 60 * time.Second

// Renderer turns the print area of a workbook into PNG bytes.
type Renderer interface {
	Render(ctx context.Context, workbookPath, outDir string) ([]byte, error)
}

// LibreOfficeRenderer shells out to a headless LibreOffice.
type LibreOfficeRenderer struct {
	Path    string
	Timeout time.Duration
}

func NewLibreOfficeRenderer(path string, timeout time.Duration) *LibreOfficeRenderer {
	if strings.TrimSpace(path) == "" {
		path = "libreoffice"
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &LibreOfficeRenderer{Path: path, Timeout: timeout}
}

func (r *LibreOfficeRenderer) Render(ctx context.Context, workbookPath, outDir string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Path,
		"--headless",
		"--calc",
		"--convert-to", "png",
		"--outdir", outDir,
		workbookPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("libreoffice not found at %q", r.Path)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("libreoffice export timed out after %s", r.Timeout)
		}
		return nil, fmt.Errorf("libreoffice export failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	stem := strings.TrimSuffix(filepath.Base(workbookPath), filepath.Ext(workbookPath))
	pngPath := filepath.Join(outDir, stem+".png")
	data, err := os.ReadFile(pngPath)
	if err != nil {
		return nil, fmt.Errorf("png export missing: %w", err)
	}
	_ = os.Remove(pngPath)

	return data, nil
}
