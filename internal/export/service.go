package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/bitemporal/internal/temporal"
)

// TimelineSource produces a timeline for an entity. *temporal.Type
// satisfies it.
type TimelineSource interface {
	Timeline(ctx context.Context, q temporal.Querier, entityID uuid.UUID) ([]temporal.TimelineEntry, error)
	Fields() []temporal.FieldConfig
	HasActivity() bool
}

// Service renders reconstructed timelines as tabular files: one row per
// tick, one column per tracked field, values present only at the tick
// where the field changed.
type Service struct {
	source TimelineSource
	q      temporal.Querier
}

// NewService creates a timeline export service
func NewService(source TimelineSource, q temporal.Querier) *Service {
	return &Service{source: source, q: q}
}

const sheetName = "Timeline"

// WriteXLSX writes the entity's timeline as an Excel workbook.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer, entityID uuid.UUID) error {
	entries, err := s.source.Timeline(ctx, s.q, entityID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	for col, header := range s.headers() {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, entry := range entries {
		for col, value := range s.row(entry) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write timeline row: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes the entity's timeline as CSV.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, entityID uuid.UUID) error {
	entries, err := s.source.Timeline(ctx, s.q, entityID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(s.headers()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, entry := range entries {
		if err := cw.Write(s.row(entry)); err != nil {
			return fmt.Errorf("failed to write timeline row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) headers() []string {
	headers := []string{"Tick", "Recorded At"}
	for _, f := range s.source.Fields() {
		headers = append(headers, f.Name)
	}
	if s.source.HasActivity() {
		headers = append(headers, "Activity")
	}
	return headers
}

func (s *Service) row(entry temporal.TimelineEntry) []string {
	row := []string{
		fmt.Sprintf("%d", entry.Clock.Tick),
		entry.Clock.RecordedAt.Format(time.RFC3339),
	}
	for _, f := range s.source.Fields() {
		if v, ok := entry.Changed[f.Name]; ok {
			row = append(row, formatValue(v))
		} else {
			row = append(row, "")
		}
	}
	if s.source.HasActivity() {
		if entry.Clock.Activity != nil {
			row = append(row, formatValue(entry.Clock.Activity))
		} else {
			row = append(row, "")
		}
	}
	return row
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}
