package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	"go.uber.org/zap"
)

// AlertService turns permission denials into operator alerts
type AlertService struct {
	sender port.AlertSender
	logger *zap.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(sender port.AlertSender, logger *zap.Logger) *AlertService {
	return &AlertService{
		sender: sender,
		logger: logger,
	}
}

// HandlePermissionDenied is a dispatcher handler for event.TypePermissionDenied
func (s *AlertService) HandlePermissionDenied(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypePermissionDenied {
		return nil
	}

	text := FormatDenialAlert(evt)
	if err := s.sender.SendText(ctx, text); err != nil {
		s.logger.Error("Failed to send denial alert",
			zap.String("instance_id", evt.InstanceID),
			zap.String("actor_id", evt.ActorID),
			zap.Error(err))
		return fmt.Errorf("send denial alert: %w", err)
	}

	s.logger.Info("Denial alert sent",
		zap.String("instance_id", evt.InstanceID),
		zap.String("actor_id", evt.ActorID))
	return nil
}

// FormatDenialAlert renders the alert body
func FormatDenialAlert(evt *event.Event) string {
	var b strings.Builder
	b.WriteString("[workflow-gate] Permission denied\n")
	fmt.Fprintf(&b, "Actor: %s (role %s)\n", evt.ActorID, evt.GetPayloadString(event.KeyActorRole))
	fmt.Fprintf(&b, "Instance: %s\n", evt.InstanceID)
	fmt.Fprintf(&b, "Target step: %s\n", evt.GetPayloadString(event.KeyToState))
	if reasons := evt.GetPayloadStrings(event.KeyReasons); len(reasons) > 0 {
		fmt.Fprintf(&b, "Reasons: %s\n", strings.Join(reasons, "; "))
	}
	fmt.Fprintf(&b, "Time: %s", evt.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
