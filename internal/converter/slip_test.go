package converter

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/xuri/excelize/v2"
)

type fakeRenderer struct {
	renderFn func(ctx context.Context, workbookPath, outDir string) ([]byte, error)
}

func (f *fakeRenderer) Render(ctx context.Context, workbookPath, outDir string) ([]byte, error) {
	return f.renderFn(ctx, workbookPath, outDir)
}

func writeTemplate(t *testing.T, sheet string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	if err := f.SetCellFormula(sheet, "E24", "D9*1000"); err != nil {
		t.Fatalf("SetCellFormula() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func codeCellOf(t *testing.T, workbook string) string {
	t.Helper()

	f, err := excelize.OpenFile(workbook)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	v, err := f.GetCellValue(DefaultSheetName, DefaultCodeCell)
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	return v
}

func TestSlipConverterConvertBatch(t *testing.T) {
	t.Parallel()

	source := writeTemplate(t, DefaultSheetName)
	var renderedCodes []string
	renderer := &fakeRenderer{renderFn: func(_ context.Context, workbookPath, _ string) ([]byte, error) {
		code := codeCellOf(t, workbookPath)
		renderedCodes = append(renderedCodes, code)
		if code == "13" {
			return nil, errors.New("libreoffice export failed")
		}
		return []byte("png-" + code), nil
	}}

	c, err := NewSlipConverter(Options{WorkDir: t.TempDir()}, renderer, nil)
	if err != nil {
		t.Fatalf("NewSlipConverter() error = %v", err)
	}

	var outcomes []Outcome
	err = c.ConvertBatch(context.Background(), source, []string{"12", "13", "NV01"}, domain.ImageConfig{}, func(o Outcome) {
		outcomes = append(outcomes, o)
	})
	if err != nil {
		t.Fatalf("ConvertBatch() unexpected error = %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}

	first := outcomes[0]
	if !first.Success || first.Code != "12" {
		t.Fatalf("first outcome = %+v", first)
	}
	if first.Image != base64.StdEncoding.EncodeToString([]byte("png-12")) {
		t.Fatalf("first image = %q", first.Image)
	}
	if first.Salary == nil || *first.Salary != 12000 {
		t.Fatalf("first salary = %v, want 12000", first.Salary)
	}

	if second := outcomes[1]; second.Success || second.Error != "libreoffice export failed" {
		t.Fatalf("second outcome = %+v", second)
	}

	third := outcomes[2]
	if !third.Success || third.Salary != nil {
		t.Fatalf("non-numeric code outcome = %+v, want success without salary", third)
	}
	if renderedCodes[2] != "NV01" {
		t.Fatalf("rendered code = %q, want NV01", renderedCodes[2])
	}

	original := codeCellOf(t, source)
	if original != "" {
		t.Fatalf("source workbook was modified: D9 = %q", original)
	}
}

func TestSlipConverterMissingSheetFailsEachCode(t *testing.T) {
	t.Parallel()

	source := writeTemplate(t, "Other")
	renderer := &fakeRenderer{renderFn: func(context.Context, string, string) ([]byte, error) {
		t.Fatal("renderer must not run without the template sheet")
		return nil, nil
	}}
	c, _ := NewSlipConverter(Options{WorkDir: t.TempDir()}, renderer, nil)

	var outcomes []Outcome
	if err := c.ConvertBatch(context.Background(), source, []string{"1", "2"}, domain.ImageConfig{}, func(o Outcome) {
		outcomes = append(outcomes, o)
	}); err != nil {
		t.Fatalf("ConvertBatch() unexpected error = %v", err)
	}
	for _, o := range outcomes {
		if o.Success || o.Error != `sheet "Phiếu lương" not found` {
			t.Fatalf("outcome = %+v", o)
		}
	}
}

func TestSlipConverterStagingFailureIsBatchError(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{renderFn: func(context.Context, string, string) ([]byte, error) { return nil, nil }}
	c, _ := NewSlipConverter(Options{WorkDir: t.TempDir()}, renderer, nil)

	called := false
	err := c.ConvertBatch(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), []string{"1"}, domain.ImageConfig{}, func(Outcome) {
		called = true
	})
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ConvertBatch() error = %v, want not-exist", err)
	}
	if called {
		t.Fatal("no outcome expected when staging fails")
	}
}

func TestSlipConverterStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	source := writeTemplate(t, DefaultSheetName)
	renderer := &fakeRenderer{renderFn: func(context.Context, string, string) ([]byte, error) { return []byte("png"), nil }}
	c, _ := NewSlipConverter(Options{WorkDir: t.TempDir()}, renderer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.ConvertBatch(ctx, source, []string{"1"}, domain.ImageConfig{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("ConvertBatch() error = %v, want context.Canceled", err)
	}
}

func TestSlipConverterRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{renderFn: func(context.Context, string, string) ([]byte, error) { return nil, nil }}
	c, _ := NewSlipConverter(Options{}, renderer, nil)

	err := c.ConvertBatch(context.Background(), "unused.xlsx", nil, domain.ImageConfig{StartCol: "1"}, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ConvertBatch() error = %v, want ErrValidation", err)
	}
}

func TestLibreOfficeRendererMissingBinary(t *testing.T) {
	t.Parallel()

	r := NewLibreOfficeRenderer(filepath.Join(t.TempDir(), "no-such-soffice"), 0)
	_, err := r.Render(context.Background(), "slip.xlsx", t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
