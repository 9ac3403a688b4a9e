package port

import (
	"context"
	"io"

	"github.com/garyjia/workflow-gate/internal/domain/entity"
)

// AlertSender delivers plain-text security alerts to an operator channel
type AlertSender interface {
	SendText(ctx context.Context, text string) error
}

// AuditReportWriter renders audit entries into a report document
type AuditReportWriter interface {
	WriteAuditReport(entries []*entity.AuditLogEntry, out io.Writer) error
}
