package converter

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	DefaultSheetName = "Phiếu lương"
	DefaultCodeCell  = "D9"
	DefaultValueCell = "E24"

	printAreaName  = "_xlnm.Print_Area"
	stagedWorkbook = "salary.xlsx"
	pageMargin     = 0.1
)

type Options struct {
	SheetName string
	CodeCell  string
	ValueCell string
	WorkDir   string
}

func (o Options) withDefaults() Options {
	if o.SheetName == "" {
		o.SheetName = DefaultSheetName
	}
	if o.CodeCell == "" {
		o.CodeCell = DefaultCodeCell
	}
	if o.ValueCell == "" {
		o.ValueCell = DefaultValueCell
	}
	return o
}

// SlipConverter fills the salary slip template once per employee code and
// renders its print area.
type SlipConverter struct {
	opts     Options
	renderer Renderer
	logger   *zap.Logger
}

func NewSlipConverter(opts Options, renderer Renderer, logger *zap.Logger) (*SlipConverter, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlipConverter{
		opts:     opts.withDefaults(),
		renderer: renderer,
		logger:   logger,
	}, nil
}

func (c *SlipConverter) ConvertBatch(
	ctx context.Context,
	sourcePath string,
	codes []string,
	cfg domain.ImageConfig,
	onResult func(Outcome),
) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(c.opts.WorkDir, "slips-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	staged := filepath.Join(tmpDir, stagedWorkbook)
	if err := copyFile(sourcePath, staged); err != nil {
		return fmt.Errorf("failed to stage workbook: %w", err)
	}

	c.logger.Info("slip conversion started",
		zap.Int("codes", len(codes)),
		zap.String("printArea", cfg.PrintArea()),
	)

	succeeded := 0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome := c.convertOne(ctx, staged, tmpDir, code, cfg)
		if outcome.Success {
			succeeded++
		} else {
			c.logger.Warn("slip conversion failed",
				zap.String("employeeCode", code),
				zap.String("error", outcome.Error),
			)
		}
		if onResult != nil {
			onResult(outcome)
		}
	}

	c.logger.Info("slip conversion finished",
		zap.Int("codes", len(codes)),
		zap.Int("succeeded", succeeded),
	)
	return nil
}

func (c *SlipConverter) convertOne(ctx context.Context, workbook, outDir, code string, cfg domain.ImageConfig) Outcome {
	salary, err := c.prepare(workbook, code, cfg)
	if err != nil {
		return Outcome{Code: code, Error: err.Error()}
	}

	png, err := c.renderer.Render(ctx, workbook, outDir)
	if err != nil {
		return Outcome{Code: code, Error: err.Error()}
	}

	return Outcome{
		Code:    code,
		Success: true,
		Image:   base64.StdEncoding.EncodeToString(png),
		Salary:  salary,
	}
}

// prepare writes the code into the template, fixes the page setup and
// returns the evaluated salary cell.
func (c *SlipConverter) prepare(workbook, code string, cfg domain.ImageConfig) (*int64, error) {
	f, err := excelize.OpenFile(workbook)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := c.opts.SheetName
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	var value any = code
	if n, err := strconv.ParseInt(code, 10, 64); err == nil {
		value = n
	}
	if err := f.SetCellValue(sheet, c.opts.CodeCell, value); err != nil {
		return nil, fmt.Errorf("set employee code: %w", err)
	}

	if err := setPrintArea(f, sheet, cfg); err != nil {
		return nil, err
	}
	if err := setPageSetup(f, sheet); err != nil {
		return nil, err
	}

	if err := f.Save(); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}

	return readAmount(f, sheet, c.opts.ValueCell), nil
}

func setPrintArea(f *excelize.File, sheet string, cfg domain.ImageConfig) error {
	ref := fmt.Sprintf("'%s'!$%s$%d:$%s$%d", sheet, cfg.StartCol, cfg.StartRow, cfg.EndCol, cfg.EndRow)

	_ = f.DeleteDefinedName(&excelize.DefinedName{Name: printAreaName, Scope: sheet})
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     printAreaName,
		RefersTo: ref,
		Scope:    sheet,
	}); err != nil {
		return fmt.Errorf("set print area: %w", err)
	}
	return nil
}

func setPageSetup(f *excelize.File, sheet string) error {
	margin, zero := pageMargin, 0.0
	centered := true
	if err := f.SetPageMargins(sheet, &excelize.PageLayoutMarginsOptions{
		Left:         &margin,
		Right:        &margin,
		Top:          &margin,
		Bottom:       &margin,
		Header:       &zero,
		Footer:       &zero,
		Horizontally: &centered,
		Vertically:   &centered,
	}); err != nil {
		return fmt.Errorf("set page margins: %w", err)
	}

	orientation, one := "portrait", 1
	if err := f.SetPageLayout(sheet, &excelize.PageLayoutOptions{
		Orientation: &orientation,
		FitToWidth:  &one,
		FitToHeight: &one,
	}); err != nil {
		return fmt.Errorf("set page layout: %w", err)
	}

	fitToPage := true
	if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{FitToPage: &fitToPage}); err != nil {
		return fmt.Errorf("set sheet props: %w", err)
	}
	return nil
}

// readAmount evaluates cell as a whole number. Blank or non-numeric cells
// yield nil.
func readAmount(f *excelize.File, sheet, cell string) *int64 {
	raw, err := f.CalcCellValue(sheet, cell)
	if err != nil {
		return nil
	}
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	amount := int64(v)
	return &amount
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
