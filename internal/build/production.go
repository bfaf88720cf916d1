package build

import (
	"context"
	"errors"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/kiln/internal/app"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
)

// Build runs one production bundle. The HTML shell is checked first so a
// missing mount element aborts before anything is written. Any esbuild error
// fails the whole build with ERR_BUILD_FAILED carrying the formatted
// diagnostics.
func Build(ctx context.Context, opts Options, logger logging.Logger) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := app.Bootstrap(opts.IndexPath, opts.MountID); err != nil {
		return nil, err
	}

	op := logging.StartOperation(logger, "production_build")
	result := api.Build(opts.Production())

	for _, w := range convertMessages(result.Warnings, kerrors.ErrorSeverityWarning) {
		w := w
		logger.Warn(ctx, &w, "Build warning", "file", w.File, "line", w.Line)
	}

	if len(result.Errors) > 0 {
		err := kerrors.ErrBuildFailed(len(result.Errors), errors.New(FormatErrors(result.Errors)))
		op.EndWithError(ctx, err)
		return nil, err
	}

	report, err := NewReport(opts, NewResult(&result, op.Elapsed()))
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	op.End(ctx, "outputs", len(report.Files), "bytes", report.TotalSize)
	return report, nil
}

// FormatErrors renders esbuild errors the way the esbuild CLI prints them,
// without terminal colors.
func FormatErrors(msgs []api.Message) string {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})
	return strings.TrimSpace(strings.Join(formatted, ""))
}
