package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/writing-eval/internal/repository"
)

const sheet = "Evaluations"

// Service produces XLSX bytes for evaluation exports.
type Service struct {
	evaluations repository.EvaluationRepository
	logger      *slog.Logger
}

func NewService(evaluations repository.EvaluationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{evaluations: evaluations, logger: logger}
}

var headers = []string{
	"Attempt",
	"Overall",
	"Task 1",
	"Task 2",
	"T2 Task Response",
	"T2 Coherence",
	"T2 Lexical",
	"T2 Grammar",
	"Confidence",
	"Provider",
	"Model",
	"Salvaged",
	"Fallbacks",
	"Warnings",
	"Created",
}

// ExportEvaluationsXLSX returns a workbook with one row per stored evaluation, oldest first.
// A non-positive limit exports everything.
func (s *Service) ExportEvaluationsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	evs, err := s.evaluations.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, ev := range evs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, ev.AttemptID)
		write(2, ev.OverallBand)
		write(3, band(ev.Task1Band))
		write(4, ev.Task2Band)
		write(5, band(ev.Task2Criteria.TaskResponse))
		write(6, band(ev.Task2Criteria.CoherenceCohesion))
		write(7, band(ev.Task2Criteria.LexicalResource))
		write(8, band(ev.Task2Criteria.GrammarAccuracy))
		write(9, ev.Meta.Confidence)
		write(10, ev.ProviderName)
		write(11, ev.ModelName)
		write(12, ev.Meta.Salvaged)
		write(13, len(ev.Meta.FailedProviders))
		write(14, truncate(strings.Join(ev.Warnings, "; "), 140))
		write(15, ev.CreatedAt.UTC().Format(time.RFC3339))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "I", 12)
	_ = f.SetColWidth(sheet, "J", "K", 22)
	_ = f.SetColWidth(sheet, "N", "N", 48)
	_ = f.SetColWidth(sheet, "O", "O", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok", "rows", len(evs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// band renders a nullable band; empty cells mean "not graded".
func band(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
