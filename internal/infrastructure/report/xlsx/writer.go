package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

const (
	casesSheet   = "Cases"
	summarySheet = "Summary"
)

// Writer renders evaluation reports as XLSX workbooks and stores them.
type Writer struct {
	storage ports.ObjectStorage
}

func NewWriter(storage ports.ObjectStorage) *Writer {
	return &Writer{storage: storage}
}

func (w *Writer) WriteEvaluation(ctx context.Context, key string, report domain.EvaluationReport) error {
	buf, err := Render(report)
	if err != nil {
		return err
	}
	if err := w.storage.Save(ctx, key, buf); err != nil {
		return fmt.Errorf("save evaluation report %s: %w", key, err)
	}
	return nil
}

// Render builds a workbook with one row per case and a summary sheet.
func Render(report domain.EvaluationReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	header := []any{"id", "question", "expected_page", "retrieved_pages", "passed"}
	if err := f.SetSheetRow(casesSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(casesSheet, "A1", "E1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, c := range report.Cases {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{c.ID, c.Question, expectedPage(c.ExpectedPage), joinPages(c.RetrievedPages), c.Passed}
		if err := f.SetSheetRow(casesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write case %s: %w", c.ID, err)
		}
	}
	if err := f.SetColWidth(casesSheet, "B", "B", 60); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	summary := [][]any{
		{"passed", report.Passed},
		{"total", report.Total},
		{"hit_rate", hitRate(report)},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, "A"+strconv.Itoa(i+1), &row); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf, nil
}

func expectedPage(page *int) any {
	if page == nil {
		return ""
	}
	return *page
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func hitRate(report domain.EvaluationReport) float64 {
	if report.Total == 0 {
		return 0
	}
	return float64(report.Passed) / float64(report.Total)
}
