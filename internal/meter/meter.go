package meter

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
)

// rowsPerPage is the billing bucket for tabular formats: only complete
// blocks of 50 data rows bill a page.
const rowsPerPage = 50

// FileInput is a raw byte buffer plus its declared filename.
type FileInput struct {
	Name string
	Data []byte
}

// Meter computes billable page counts per file format.
type Meter struct {
	logger  *slog.Logger
	workers int
}

func New(logger *slog.Logger, workers int) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Meter{logger: logger, workers: workers}
}

// Count meters a single file. A counting failure never propagates as an
// error; it is recorded on the result so batch processing can continue.
func (m *Meter) Count(ctx context.Context, in FileInput) entity.PageCountResult {
	desc := entity.FileDescriptor{
		Name:   in.Name,
		Size:   int64(len(in.Data)),
		Format: constants.DetectFormat(in.Name),
	}
	res := entity.PageCountResult{File: desc}

	var (
		pages int
		err   error
	)
	switch desc.Format {
	case constants.FormatPDF:
		pages, err = countPDF(in.Data)
	case constants.FormatExcel:
		pages, err = countSpreadsheet(in.Data)
	case constants.FormatCSV:
		pages = countCSV(in.Data)
	case constants.FormatImage:
		pages = 1
	default:
		// Unknown formats bill zero pages but stay in the breakdown.
		pages = 0
	}

	if err != nil {
		m.logger.Warn("page count failed", "file", in.Name, "format", desc.Format, "error", err)
		res.Err = err.Error()
		return res
	}
	res.Pages = pages
	return res
}

// CountBatch meters all files and aggregates the total. Files are counted
// concurrently; per-file failures and unknown formats are surfaced as
// warnings, never as a batch failure. An empty batch yields a zero total.
func (m *Meter) CountBatch(ctx context.Context, files []FileInput) entity.BatchCount {
	out := entity.BatchCount{PerFile: make([]entity.PageCountResult, len(files))}
	if len(files) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			out.PerFile[i] = m.Count(gctx, f)
			return nil
		})
	}
	// Workers never return errors; failures land in the per-file results.
	_ = g.Wait()

	for _, r := range out.PerFile {
		out.Total += r.Pages
		switch {
		case r.Err != "":
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: counting failed: %s", r.File.Name, r.Err))
		case r.File.Format == constants.FormatUnknown:
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s, counted as 0 pages", r.File.Name, common.ErrFormatUnsupported))
		}
	}
	return out
}
