package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/common"
	"github.com/dmreyes/idextract/internal/job"
)

// fieldColumns is the fixed column order for identity exports.
var fieldColumns = []struct {
	Header string
	Key    string
}{
	{"Document Type", "document_type"},
	{"Document Number", "document_number"},
	{"Full Name", "full_name"},
	{"Birth Date", "birth_date"},
	{"Expiry Date", "expiry_date"},
	{"Issue Date", "issue_date"},
	{"Nationality", "nationality"},
	{"Sex", "sex"},
	{"Issuing Country", "issuing_country"},
	{"Address", "address"},
}

// Service produces XLSX bytes from completed job records.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportJobXLSX returns a single-job workbook: one sheet with the
// extracted fields, one with metrics and diagnostics. Only COMPLETED
// jobs carry extracted data, anything else is rejected.
func (s *Service) ExportJobXLSX(rec *job.Record) ([]byte, error) {
	if rec.Status != constants.JobStatusCompleted {
		return nil, common.ErrNotReady
	}
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Fields"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	_ = f.SetCellValue(sheet, "A1", "Field")
	_ = f.SetCellValue(sheet, "B1", "Value")
	row := 2
	for _, col := range fieldColumns {
		v, ok := rec.State.ExtractedData[col.Key]
		if !ok {
			continue
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), col.Header)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("%v", v))
		row++
	}
	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "B", 40)

	if err := s.writeDetailSheet(f, rec); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", rec.ID.String(),
		"fields", len(rec.State.ExtractedData),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportJobsXLSX returns a workbook with one row per completed job.
// Non-terminal and failed jobs are skipped.
func (s *Service) ExportJobsXLSX(recs []*job.Record) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Job ID", "Filename", "Completed At"}
	for _, col := range fieldColumns {
		headers = append(headers, col.Header)
	}
	headers = append(headers, "Completeness", "Confidence")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	exported := 0
	for _, rec := range recs {
		if rec.Status != constants.JobStatusCompleted {
			continue
		}
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, rec.ID.String())
		write(2, rec.State.Document.Filename)
		if rec.CompletedAt != nil {
			write(3, rec.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		for i, col := range fieldColumns {
			if v, ok := rec.State.ExtractedData[col.Key]; ok {
				write(4+i, fmt.Sprintf("%v", v))
			}
		}
		write(4+len(fieldColumns), fmt.Sprintf("%.2f", rec.State.Quality.Completeness))
		write(5+len(fieldColumns), fmt.Sprintf("%.2f", rec.State.Quality.Confidence))
		row++
		exported++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "B", 30)
	_ = f.SetColWidth(sheet, "C", "C", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.batch.ok",
		"rows", exported,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeDetailSheet(f *excelize.File, rec *job.Record) error {
	const sheet = "Details"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][2]any{
		{"Job ID", rec.ID.String()},
		{"Filename", rec.State.Document.Filename},
		{"Size (bytes)", rec.State.Document.SizeBytes},
		{"Extraction Method", rec.State.Document.Method},
		{"Pages", rec.State.Metrics.Pages},
		{"Extracted Characters", rec.State.Metrics.ExtractedChars},
		{"Cleaned Characters", rec.State.Metrics.CleanedChars},
		{"OCR Confidence", fmt.Sprintf("%.1f", rec.State.Metrics.OCRConfidence)},
		{"Tokens Used", rec.State.Metrics.TokensUsed},
		{"Cost Estimate", fmt.Sprintf("%.6f", rec.State.Metrics.CostEstimate)},
		{"Completeness", fmt.Sprintf("%.2f", rec.State.Quality.Completeness)},
		{"Confidence", fmt.Sprintf("%.2f", rec.State.Quality.Confidence)},
	}
	for i, r := range rows {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), r[0])
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), r[1])
	}
	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "B", 44)
	return nil
}
