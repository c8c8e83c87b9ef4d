package converter

import (
	"context"

	"github.com/kursadbilgin/payslip-dispatch/internal/domain"
)

// Outcome is the per-code result of a batch conversion.
type Outcome struct {
	Code    string
	Success bool
	Image   string // base64 PNG without data URL prefix
	Salary  *int64
	Error   string
}

// Converter renders salary slips for a set of employee codes from one
// source workbook. onResult is invoked once per code, in input order, from
// the converter's goroutine. A returned error means the batch as a whole
// could not run; codes without a reported outcome are then unresolved.
type Converter interface {
	ConvertBatch(ctx context.Context, sourcePath string, codes []string, cfg domain.ImageConfig, onResult func(Outcome)) error
}
