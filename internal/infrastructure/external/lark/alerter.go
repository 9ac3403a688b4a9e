package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/workflow-gate/internal/application/port"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const receiveIDTypeChat = "chat_id"

// Config holds Lark alerting configuration
type Config struct {
	AppID       string
	AppSecret   string
	AlertChatID string
	APITimeout  time.Duration
}

// messageCreator is the slice of the IM API the alerter needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Alerter posts plain-text alerts into one group chat
type Alerter struct {
	messages messageCreator
	chatID   string
	logger   *zap.Logger
}

var _ port.AlertSender = (*Alerter)(nil)

// NewAlerter creates an alerter backed by the Lark SDK
func NewAlerter(cfg Config, logger *zap.Logger) *Alerter {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.APITimeout))
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)

	return newAlerter(client.Im.Message, cfg.AlertChatID, logger)
}

func newAlerter(messages messageCreator, chatID string, logger *zap.Logger) *Alerter {
	return &Alerter{
		messages: messages,
		chatID:   chatID,
		logger:   logger,
	}
}

// SendText sends text to the configured chat
func (a *Alerter) SendText(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeChat).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(a.chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := a.messages.Create(ctx, req)
	if err != nil {
		a.logger.Error("Failed to send alert",
			zap.String("chat_id", a.chatID),
			zap.Error(err))
		return fmt.Errorf("failed to send alert: %w", err)
	}

	if !resp.Success() {
		a.logger.Error("API returned failure",
			zap.String("chat_id", a.chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	a.logger.Debug("Alert sent",
		zap.String("message_id", messageID),
		zap.String("chat_id", a.chatID))

	return nil
}
