// Package export renders audit logs as spreadsheet reports.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet holding the audit rows
const SheetName = "Audit Log"

const timestampLayout = "2006-01-02 15:04:05"

var auditHeader = []interface{}{
	"Time (UTC)", "Event", "Actor", "Resource Type", "Resource ID", "Action", "Result", "Instance", "Details",
}

var columnWidths = map[string]float64{
	"A": 20, "B": 26, "C": 18, "D": 18, "E": 38, "F": 32, "G": 10, "H": 38, "I": 60,
}

// XLSXWriter writes audit entries as one XLSX sheet
type XLSXWriter struct {
	logger *zap.Logger
}

var _ port.AuditReportWriter = (*XLSXWriter)(nil)

// NewXLSXWriter creates a new XLSXWriter
func NewXLSXWriter(logger *zap.Logger) *XLSXWriter {
	return &XLSXWriter{logger: logger}
}

// WriteAuditReport writes a header row plus one row per entry, in the given order
func (w *XLSXWriter) WriteAuditReport(entries []*entity.AuditLogEntry, out io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := w.writeHeader(file); err != nil {
		return err
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SheetName, cell, &[]interface{}{
			entry.Timestamp.UTC().Format(timestampLayout),
			entry.EventType,
			entry.UserID,
			entry.ResourceType,
			entry.ResourceID,
			entry.Action,
			entry.Result,
			entry.WorkflowInstanceID,
			entry.Details,
		}); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := file.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Debug("Audit workbook written",
		zap.Int("rows", len(entries)),
		zap.Time("generated_at", time.Now().UTC()))
	return nil
}

func (w *XLSXWriter) writeHeader(file *excelize.File) error {
	if err := file.SetSheetRow(SheetName, "A1", &auditHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := file.SetCellStyle(SheetName, "A1", "I1", style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for col, width := range columnWidths {
		if err := file.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}

	// keep the header visible while scrolling
	return file.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
