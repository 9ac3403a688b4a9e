package container

import (
	"time"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/application/service"
	"github.com/garyjia/workflow-gate/internal/application/workflow"
)

func portFilterFor(instanceID string) port.AuditFilter {
	return port.AuditFilter{InstanceID: instanceID}
}

func createRequest() workflow.CreateInstanceRequest {
	return workflow.CreateInstanceRequest{
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		InitiatorID:    "user-1",
	}
}

func auditWindow(span time.Duration) service.AuditReportRequest {
	now := time.Now().UTC()
	return service.AuditReportRequest{From: now.Add(-span), To: now.Add(span)}
}
