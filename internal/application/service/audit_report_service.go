package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/port"
	domainwf "github.com/garyjia/workflow-gate/internal/domain/workflow"
	"go.uber.org/zap"
)

// AuditReportRequest selects the audit window to export; To is exclusive
type AuditReportRequest struct {
	From   time.Time
	To     time.Time
	Result string
}

// AuditReportService exports audit logs to a report
type AuditReportService struct {
	audit  port.AuditRepository
	writer port.AuditReportWriter
	logger *zap.Logger
}

// NewAuditReportService creates a new AuditReportService
func NewAuditReportService(audit port.AuditRepository, writer port.AuditReportWriter, logger *zap.Logger) *AuditReportService {
	return &AuditReportService{
		audit:  audit,
		writer: writer,
		logger: logger,
	}
}

// Export writes every audit entry in the window to out and returns the row count
func (s *AuditReportService) Export(ctx context.Context, req AuditReportRequest, out io.Writer) (int, error) {
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return 0, fmt.Errorf("from must be before to: %w", domainwf.ErrValidation)
	}

	entries, err := s.audit.List(ctx, port.AuditFilter{From: req.From, To: req.To, Result: req.Result})
	if err != nil {
		return 0, fmt.Errorf("list audit entries: %w", err)
	}

	if err := s.writer.WriteAuditReport(entries, out); err != nil {
		return 0, fmt.Errorf("write audit report: %w", err)
	}

	s.logger.Info("Audit report exported",
		zap.Time("from", req.From),
		zap.Time("to", req.To),
		zap.Int("rows", len(entries)))
	return len(entries), nil
}
